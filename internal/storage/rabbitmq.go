package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"lablink-go/internal/config"
	"lablink-go/internal/logger"
)

// MessageQueue 消息队列接口
type MessageQueue interface {
	// PublishJSON 发布JSON格式消息
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error

	// EnsureExchange 确保交换机存在
	EnsureExchange(exchangeName, exchangeType string, durable bool) error

	// EnsureQueue 确保队列存在并绑定到交换机
	EnsureQueue(queueName, exchangeName, routingKey string, durable bool) error

	// Close 关闭连接
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ 消息队列适配器，承载邮件发送事件。
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	declared    map[string]bool // 已声明的exchange/queue/binding
	declaredMu  sync.Mutex
	cfg         *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端并声明邮件事件拓扑。
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败 (%s): %w", cfg.URL, err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]bool),
		cfg:      cfg,
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, chErr := conn.Channel()
			if chErr != nil {
				logger.Error().Err(chErr).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	if cfg.EmailEventsExchange != "" {
		if err := mq.EnsureExchange(cfg.EmailEventsExchange, "topic", true); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if cfg.EmailQueue != "" {
			if err := mq.EnsureQueue(cfg.EmailQueue, cfg.EmailEventsExchange, cfg.EmailRoutingKey, true); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
	}

	logger.Info().Str("url", cfg.URL).Msg("RabbitMQ连接成功")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch, _ := r.channelPool.Get().(*amqp.Channel)
	return ch
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// EnsureExchange 幂等地声明交换机。
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	r.declaredMu.Lock()
	defer r.declaredMu.Unlock()
	key := "ex:" + exchangeName
	if r.declared[key] {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)
	if err := ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明交换机%s失败: %w", exchangeName, err)
	}
	r.declared[key] = true
	return nil
}

// EnsureQueue 幂等地声明队列并绑定到交换机。
func (r *RabbitMQ) EnsureQueue(queueName, exchangeName, routingKey string, durable bool) error {
	r.declaredMu.Lock()
	defer r.declaredMu.Unlock()
	key := "q:" + queueName + ":" + exchangeName + ":" + routingKey
	if r.declared[key] {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)
	if _, err := ch.QueueDeclare(queueName, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列%s失败: %w", queueName, err)
	}
	if exchangeName != "" {
		if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
			return fmt.Errorf("绑定队列%s到交换机%s失败: %w", queueName, exchangeName, err)
		}
	}
	r.declared[key] = true
	return nil
}

// PublishJSON 以JSON格式发布消息。
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}
	err = ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("发布消息到%s/%s失败: %w", exchangeName, routingKey, err)
	}
	return nil
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}
