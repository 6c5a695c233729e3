package jobs

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"mediavault/internal/config"
)

const bufferSize = 128

// Ключи маршрутизации конвейера обработки
const (
	RoutingKeyProcess      = "asset.process"
	RoutingKeyFrameCapture = "asset.frame-capture"
)

// ProcessingJob - задание конвейеру обработки для нового файла
type ProcessingJob struct {
	AssetID      uuid.UUID `json:"asset_id"`
	AccountID    uuid.UUID `json:"account_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	StorageKey   string    `json:"storage_key"`
	MIMEType     string    `json:"mime_type"`
	OriginalName string    `json:"original_name"`
}

// FrameCaptureJob - задание на извлечение кадра видео для миниатюры
type FrameCaptureJob struct {
	JobID          uuid.UUID `json:"job_id"`
	AssetID        uuid.UUID `json:"asset_id"`
	AccountID      uuid.UUID `json:"account_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	Timestamp      float64   `json:"timestamp"`
	StorageKey     string    `json:"storage_key"`
	MIMEType       string    `json:"mime_type"`
	SourceFilename string    `json:"source_filename"`
}

// Queue - очередь заданий конвейера обработки. Постановка задания
// fire-and-forget: сбой виден только в логах и никогда не валит
// вызвавшую операцию.
type Queue interface {
	EnqueueProcessing(job ProcessingJob)
	EnqueueFrameCapture(job FrameCaptureJob) uuid.UUID
}

type event struct {
	routingKey string
	body       []byte
}

// Publisher публикует задания в RabbitMQ через буферизованный канал,
// который разгружает отдельный воркер
type Publisher struct {
	cfg   config.MQ
	log   *zap.Logger
	conn  *amqp091.Connection
	pubCh *amqp091.Channel
	in    chan event
}

func NewPublisher(cfg config.MQ, logger *zap.Logger) *Publisher {
	return &Publisher{
		cfg: cfg,
		log: logger,
		in:  make(chan event, bufferSize),
	}
}

func (p *Publisher) Connect(ctx context.Context, dsn string) error {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	amqpCfg := amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp091.Table{
			"connection_name": "mediavault",
		},
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}

	var err error
	p.conn, err = amqp091.DialConfig(dsn, amqpCfg)
	if err != nil {
		return err
	}
	p.pubCh, err = p.conn.Channel()
	if err != nil {
		_ = p.conn.Close()
		return err
	}

	p.log.Info("rabbitmq connected successfully")
	return nil
}

// Init объявляет обменник и очереди конвейера
func (p *Publisher) Init() error {
	if err := p.pubCh.ExchangeDeclare(
		p.cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = p.pubCh.Close()
		return err
	}

	for queue, rk := range map[string]string{
		p.cfg.ProcessingQueue:   RoutingKeyProcess,
		p.cfg.FrameCaptureQueue: RoutingKeyFrameCapture,
	} {
		q, err := p.pubCh.QueueDeclare(queue, true, false, false, false, nil)
		if err != nil {
			return err
		}
		if err := p.pubCh.QueueBind(q.Name, rk, p.cfg.Exchange, false, nil); err != nil {
			return err
		}
	}

	return nil
}

// PublisherWorker разгружает буфер публикаций; запускается одной горутиной
func (p *Publisher) PublisherWorker(ctx context.Context) {
	p.log.Info("starting jobs publisher worker")

	for {
		select {
		case <-ctx.Done():
			p.log.Info("jobs publisher worker stopped")
			return
		case ev := <-p.in:
			pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.pubCh.PublishWithContext(
				pubCtx,
				p.cfg.Exchange,
				ev.routingKey,
				false,
				false,
				amqp091.Publishing{
					ContentType:  "application/json",
					DeliveryMode: amqp091.Persistent,
					Timestamp:    time.Now(),
					Body:         ev.body,
				},
			)
			cancel()
			if err != nil {
				// Запись о файле уже в статусе processing, задание можно
				// перепоставить вне полосы
				p.log.Warn("failed to publish job", zap.String("routing_key", ev.routingKey), zap.Error(err))
			}
		}
	}
}

func (p *Publisher) EnqueueProcessing(job ProcessingJob) {
	p.enqueue(RoutingKeyProcess, job)
}

func (p *Publisher) EnqueueFrameCapture(job FrameCaptureJob) uuid.UUID {
	if job.JobID == uuid.Nil {
		job.JobID = uuid.New()
	}
	p.enqueue(RoutingKeyFrameCapture, job)
	return job.JobID
}

func (p *Publisher) enqueue(routingKey string, job interface{}) {
	body, err := json.Marshal(job)
	if err != nil {
		p.log.Warn("failed to marshal job", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}

	select {
	case p.in <- event{routingKey: routingKey, body: body}:
	default:
		p.log.Warn("jobs buffer is full, dropping job", zap.String("routing_key", routingKey))
	}
}

func (p *Publisher) Close() {
	if p.pubCh != nil {
		_ = p.pubCh.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
