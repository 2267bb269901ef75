package types

// StudentProfileIn 匹配请求体：学生的兴趣与技能自述。
// 进入引擎前由请求层完成校验与清洗。
type StudentProfileIn struct {
	Interests    string `json:"interests"`
	Skills       string `json:"skills"`
	Availability string `json:"availability,omitempty"`
}

// PublicationOut 论文输出
type PublicationOut struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	Year     int    `json:"year,omitempty"`
	Link     string `json:"link,omitempty"`
}

// ProfessorOut 教授输出
type ProfessorOut struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	Department         string           `json:"department"`
	Email              string           `json:"email,omitempty"`
	ProfileLink        string           `json:"profile_link,omitempty"`
	PhotoURL           string           `json:"photo_url,omitempty"`
	ResearchInterests  string           `json:"research_interests"`
	Skills             []string         `json:"skills"`
	RecentPublications []PublicationOut `json:"recent_publications"`
}

// ProfessorIn 教授数据导入/更新的请求体。
// ID为0时新建，非0时覆盖对应行。
type ProfessorIn struct {
	ID                 int64            `json:"id,omitempty"`
	Name               string           `json:"name"`
	Department         string           `json:"department,omitempty"`
	Email              string           `json:"email,omitempty"`
	ProfileLink        string           `json:"profile_link,omitempty"`
	PhotoURL           string           `json:"photo_url,omitempty"`
	ResearchInterests  string           `json:"research_interests,omitempty"`
	Skills             []string         `json:"skills,omitempty"`
	RecentPublications []PublicationOut `json:"recent_publications,omitempty"`
}

// MatchWhy 单个匹配结果的命中解释
type MatchWhy struct {
	InterestsHits []string `json:"interests_hits"`
	SkillsHits    []string `json:"skills_hits"`
	PubsHits      []string `json:"pubs_hits"`
}

// MatchItem 单个匹配结果
type MatchItem struct {
	Score        float64      `json:"score"`
	ScorePercent float64      `json:"score_percent"`
	Why          MatchWhy     `json:"why"`
	Professor    ProfessorOut `json:"professor"`
}

// MatchResponse 匹配响应
type MatchResponse struct {
	StudentQuery string             `json:"student_query"`
	Department   string             `json:"department"`
	Weights      map[string]float64 `json:"weights"`
	Matches      []MatchItem        `json:"matches"`
}

// EmailRequest 邮件草稿请求
type EmailRequest struct {
	StudentName    string `json:"student_name"`
	StudentSkills  string `json:"student_skills,omitempty"`
	Availability   string `json:"availability,omitempty"`
	ProfessorName  string `json:"professor_name"`
	ProfessorEmail string `json:"professor_email,omitempty"`
	PaperTitle     string `json:"paper_title,omitempty"`
	Topic          string `json:"topic,omitempty"`
}

// EmailDraft 邮件草稿
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EmailSendEvent 投递到消息队列的邮件发送事件
type EmailSendEvent struct {
	RequestID      string `json:"request_id"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	StudentName    string `json:"student_name"`
	ProfessorName  string `json:"professor_name"`
	SubmittedAtUTC string `json:"submitted_at_utc"`
}
