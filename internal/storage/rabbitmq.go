package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-screen-go/internal/config"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/tracing"
	"resume-screen-go/internal/types"
)

var mqTracer = otel.Tracer("resume-screen-go/storage/rabbitmq")

// RabbitMQ 消息队列客户端，内部维护channel池
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	exchangeMap  map[string]bool
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器 (%s): %w", cfg.URL, err)
	}

	mq := &RabbitMQ{
		conn:        conn,
		exchangeMap: make(map[string]bool),
		cfg:         cfg,
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, poolErr := conn.Channel()
			if poolErr != nil {
				log.Printf("创建RabbitMQ通道失败: %v", poolErr)
				return nil
			}
			return ch
		},
	}

	testCh := mq.getChannel()
	if testCh == nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道")
	}
	mq.putChannel(testCh)

	log.Printf("成功连接到RabbitMQ服务器")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			log.Printf("创建新RabbitMQ通道失败: %v", err)
			return nil
		}
		return newCh
	}
	return ch.(*amqp.Channel)
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	if _, exists := r.exchangeMap[exchangeName]; exists {
		return nil
	}

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		durable,
		false, // 自动删除
		false, // 内部专用
		false, // 非阻塞
		nil,
	)
	if err != nil {
		return fmt.Errorf("声明exchange失败: %w", err)
	}

	r.exchangeMap[exchangeName] = true
	log.Printf("已确保exchange存在: '%s'", exchangeName)
	return nil
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	var deliveryMode uint8 = 1
	if persistent {
		deliveryMode = 2
	}

	return ch.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // 强制
		false, // 立即
		amqp.Publishing{
			DeliveryMode: deliveryMode,
			ContentType:  "application/json",
			Body:         message,
			Timestamp:    time.Now(),
		},
	)
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, exchangeName, routingKey, jsonData, persistent)
}

// StartConsumer 启动消费者，handler返回true时确认消息，否则重新入队
func (r *RabbitMQ) StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (<-chan struct{}, error) {
	stopCh := make(chan struct{})

	ch := r.getChannel()
	if ch == nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道")
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName,
		"",    // 消费者标签由server生成
		false, // 自动确认
		false, // 独占
		false, // 非本地
		false, // 非阻塞
		nil,
	)
	if err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	go func() {
		defer r.putChannel(ch)
		log.Printf("RabbitMQ消费者已启动, 队列: %s", queueName)

		for {
			select {
			case <-stopCh:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Println("RabbitMQ通道已关闭")
					return
				}
				if handler(delivery.Body) {
					if err := delivery.Ack(false); err != nil {
						log.Printf("确认消息失败: %v", err)
					}
				} else {
					if err := delivery.Nack(false, true); err != nil {
						log.Printf("拒绝消息失败: %v", err)
					}
				}
			}
		}
	}()

	return stopCh, nil
}

// ScreeningEventMessage 筛选完成事件的消息体
type ScreeningEventMessage struct {
	Event       string              `json:"event"`
	PublishedAt time.Time           `json:"published_at"`
	Result      *types.ScreenResult `json:"result"`
}

// ScreeningEventPublisher 把筛选完成事件发布到topic交换机，
// 供下游的通知、报表等系统订阅。
type ScreeningEventPublisher struct {
	mq            *RabbitMQ
	exchange      string
	routingKey    string
	maxRetries    int
	retryInterval time.Duration
}

// NewScreeningEventPublisher 创建事件发布器并声明交换机
func NewScreeningEventPublisher(mq *RabbitMQ, cfg *config.RabbitMQConfig) (*ScreeningEventPublisher, error) {
	if mq == nil {
		return nil, fmt.Errorf("RabbitMQ客户端不能为空")
	}

	exchange := cfg.ScreeningEventsExchange
	if exchange == "" {
		exchange = "screening.events.exchange"
	}
	routingKey := cfg.CompletedRoutingKey
	if routingKey == "" {
		routingKey = "screening.completed"
	}
	if err := mq.EnsureExchange(exchange, "topic", true); err != nil {
		return nil, fmt.Errorf("声明筛选事件交换机失败: %w", err)
	}

	retryInterval := config.GetDuration(cfg.RetryInterval, 2*time.Second)
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &ScreeningEventPublisher{
		mq:            mq,
		exchange:      exchange,
		routingKey:    routingKey,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
	}, nil
}

var _ pipeline.EventPublisher = (*ScreeningEventPublisher)(nil)

// PublishScreeningCompleted 发布筛选完成事件，失败时按配置重试
func (p *ScreeningEventPublisher) PublishScreeningCompleted(ctx context.Context, result *types.ScreenResult) error {
	if result == nil {
		return fmt.Errorf("筛选结果不能为空")
	}

	ctx, span := mqTracer.Start(ctx, "ScreeningEventPublisher.PublishScreeningCompleted",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", p.exchange),
			attribute.String("messaging.routing_key", p.routingKey),
			attribute.String("run_id", result.RunID),
		),
	)
	defer span.End()

	msg := ScreeningEventMessage{
		Event:       "screening.completed",
		PublishedAt: time.Now(),
		Result:      result,
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryInterval):
			}
		}
		if lastErr = p.mq.PublishJSON(ctx, p.exchange, p.routingKey, msg, true); lastErr == nil {
			return nil
		}
		log.Printf("发布筛选完成事件失败 (第%d次): %v", attempt+1, lastErr)
	}
	tracing.RecordPublishError(span, lastErr, p.routingKey)
	return fmt.Errorf("发布筛选完成事件失败: %w", lastErr)
}
