package transport

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SQSClient define a interface necessária para o listener (permite Mocking).
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SecretRotator é implementado pelo provider de segredos.
type SecretRotator interface {
	ClearCache()
}

// RotationListener monitora a fila de rotação de credenciais: ao receber um
// evento, limpa o cache de segredos para que a próxima busca traga as
// credenciais rotacionadas.
type RotationListener struct {
	client   SQSClient
	queueURL string
	rotator  SecretRotator
	logger   zerolog.Logger
}

func NewRotationListener(client SQSClient, queueURL string, rotator SecretRotator) *RotationListener {
	return &RotationListener{
		client:   client,
		queueURL: queueURL,
		rotator:  rotator,
		logger:   log.With().Str("component", "rotation_listener").Logger(),
	}
}

// Start inicia o monitoramento (bloqueante; rode em uma goroutine).
func (l *RotationListener) Start(ctx context.Context) {
	if l.queueURL == "" {
		l.logger.Warn().Msg("Fila de rotação não configurada. Rotação de segredos desativada.")
		return
	}

	l.logger.Info().Str("queue", l.queueURL).Msg("Monitorando fila SQS de rotação de segredos")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Parando monitoramento da fila de rotação")
			return
		default:
			out, err := l.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(l.queueURL),
				MaxNumberOfMessages: 1,
				WaitTimeSeconds:     20, // Long polling
			})

			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error().Err(err).Msg("Erro no SQS. Retentando em 5s...")
				time.Sleep(5 * time.Second)
				continue
			}

			if len(out.Messages) > 0 {
				l.logger.Info().Msg("Evento de rotação de credenciais recebido")

				l.rotator.ClearCache()

				_, _ = l.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(l.queueURL),
					ReceiptHandle: out.Messages[0].ReceiptHandle,
				})
			}
		}
	}
}
