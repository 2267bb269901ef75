package notify

import (
	"fmt"
	"strings"

	"lablink-go/internal/matching"
	"lablink-go/internal/types"
)

// BuildEmail 根据学生画像与目标教授生成套磁邮件草稿。
// 主题固定；正文中的研究方向按 论文标题 > 指定话题 > 学生技能首项 的顺序推断。
func BuildEmail(req types.EmailRequest) types.EmailDraft {
	professorName := req.ProfessorName
	if strings.TrimSpace(professorName) == "" {
		professorName = "Professor"
	}
	parts := strings.Fields(professorName)
	last := parts[len(parts)-1]

	topic := inferTopic(req)

	skills := strings.TrimSpace(req.StudentSkills)
	if skills == "" {
		skills = "relevant skills"
	}
	avail := strings.TrimSpace(req.Availability)
	if avail == "" {
		avail = "this quarter"
	}

	var paperLine string
	if strings.TrimSpace(req.PaperTitle) != "" {
		paperLine = fmt.Sprintf(" I recently read your paper %q.", strings.TrimSpace(req.PaperTitle))
	}

	body := fmt.Sprintf(
		"Dear Dr. %s,\n\n"+
			"My name is %s, and I am an [undergraduate or graduate] at UC Davis interested in your work on %s.%s "+
			"I would be eager to contribute to your research and apply my experience in %s. "+
			"I am available to start %s and would greatly appreciate the opportunity to discuss how I could support your lab.\n\n"+
			"I have attached my [CV or transcript or both] for your reference.\n"+
			"Thank you for your time and consideration.\n\n"+
			"Best regards,\n%s",
		last, req.StudentName, topic, paperLine, skills, avail, req.StudentName,
	)

	return types.EmailDraft{
		Subject: "Undergraduate Seeking Research Assistant Position",
		Body:    body,
	}
}

func inferTopic(req types.EmailRequest) string {
	if t := strings.TrimSpace(req.PaperTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(req.Topic); t != "" {
		return t
	}
	if skills := matching.ExtractSkills(req.StudentSkills); len(skills) > 0 {
		return skills[0]
	}
	return "your research"
}
