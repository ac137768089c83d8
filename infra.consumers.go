package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// popRetryDelay is the pause observed after a failed pop call.
const popRetryDelay = time.Second

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

type archiveConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	archive BookArchiver
}

// NewArchiveConsumer provides a consumer which replicates the books
// snapshots received from the queues into the archive.
func NewArchiveConsumer(logger *zap.Logger, q Queuer, archive BookArchiver) Consumer {
	return &archiveConsumer{logger, q, archive}
}

func (ac *archiveConsumer) Consume(ctx context.Context, qids ...string) error {
	var book Book
	var err error
	var qid string
	for {
		qid, book, err = ac.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			ac.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			ac.logger.Error("consumer: error on queue pop call", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(popRetryDelay):
			}
			continue
		}

		switch qid {
		case CreateQueue, UpdateQueue, DeleteQueue:
			if err = ac.archive.Put(ctx, qid, book); err != nil {
				ac.logger.Error("consumer: failed to archive", zap.String("qid", qid), zap.String("book.id", book.ID.Hex()), zap.Error(err))
			}
		default:
			ac.logger.Warn("consumer: received book on unknow queue id", zap.String("qid", qid), zap.String("book.id", book.ID.Hex()))
		}
	}
}
