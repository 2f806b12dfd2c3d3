// Package app wires repositories, outbound clients and services from a
// Config.  The server and the posctl tool share it so both act on sales
// the same way.
package app

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/config"
	"github.com/iliyamo/studio-pos/internal/fiscal"
	"github.com/iliyamo/studio-pos/internal/queue"
	"github.com/iliyamo/studio-pos/internal/repository"
	"github.com/iliyamo/studio-pos/internal/service"
	"github.com/iliyamo/studio-pos/internal/utils"
)

// Services holds everything built on top of the database.
type Services struct {
	Transactions *repository.TransactionRepo
	Checkins     *repository.CheckinRepo
	Payments     *repository.PaymentRepo
	Configs      *repository.ConfigRepo

	Signer     *fiscal.Signer
	Publisher  *queue.Publisher
	Finalizer  *service.Finalizer
	CheckinSvc *service.CheckinService
	Reconciler *service.Reconciler
	Settings   *service.PaymentSettings
}

// Build constructs the services.  rdb may be nil, which disables the
// finalization lock.
func Build(cfg config.Config, db *sql.DB, rdb *redis.Client, logger *log.Logger) (*Services, error) {
	sealer, err := utils.NewSealer(cfg.SecretsKey)
	if err != nil {
		return nil, err
	}
	defaultVAT, err := decimal.NewFromString(cfg.DefaultVATRate)
	if err != nil {
		return nil, fmt.Errorf("parse DEFAULT_VAT_RATE %q: %w", cfg.DefaultVATRate, err)
	}

	s := &Services{
		Transactions: repository.NewTransactionRepo(db),
		Checkins:     repository.NewCheckinRepo(db),
		Payments:     repository.NewPaymentRepo(db),
		Configs:      repository.NewConfigRepo(db, sealer),
		Publisher:    queue.NewPublisher(cfg.RabbitURL, logger),
	}
	s.Signer = fiscal.NewSigner(s.Configs, fiscal.Options{
		BaseURL:    cfg.SignerBaseURL,
		Timeout:    cfg.SignerTimeout,
		MaxRetries: cfg.SignerMaxRetries,
		DefaultVAT: defaultVAT,
	}, logger)

	s.Finalizer = service.NewFinalizer(logger, s.Transactions, s.Signer, s.Publisher,
		service.NewRedisLocker(rdb), cfg.FinalizeLockTTL)
	s.CheckinSvc = service.NewCheckinService(logger, s.Checkins, cfg.Location())
	s.Reconciler = service.NewReconciler(logger, s.Payments, s.Configs,
		service.MollieFactory(cfg.MollieBaseURL, cfg.MollieTimeout, cfg.MollieMaxRetries), s.Finalizer)
	s.Settings = service.NewPaymentSettings(s.Reconciler)
	return s, nil
}
