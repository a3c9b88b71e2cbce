package nftmarketplace

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	httpadapter "nftmarket/contexts/trading/nft-marketplace/adapters/http"
	"nftmarket/contexts/trading/nft-marketplace/adapters/memory"
	"nftmarket/contexts/trading/nft-marketplace/application"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

// Module is the composition surface of the marketplace context.
// Runtime wiring consumes Handler and Notifier; the memory adapters are
// exposed when the module runs on them so dev seeding and tests can reach
// them.
type Module struct {
	Handler  httpadapter.Handler
	Engine   *application.Engine
	Notifier *application.Notifier
	Store    *memory.Store
	Registry *memory.Registry
	Wallet   *memory.Wallet
}

type Dependencies struct {
	Listings       ports.ListingStore
	Proceeds       ports.ProceedsLedger
	Payouts        ports.PayoutQueue
	Outbox         ports.OutboxWriter
	Registry       ports.AssetRegistry
	Funds          ports.FundTransfer
	Observer       ports.OperationObserver
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Operator       common.Address
	WithdrawPolicy entities.WithdrawFailurePolicy
	Logger         *slog.Logger
}

// NewModule wires the engine and notifier against explicit ports.
func NewModule(deps Dependencies) Module {
	notifier := &application.Notifier{
		Outbox:   deps.Outbox,
		IDGen:    deps.IDGenerator,
		Clock:    deps.Clock,
		Observer: deps.Observer,
		Logger:   deps.Logger,
	}
	engine := application.NewEngine(application.Dependencies{
		Listings:       deps.Listings,
		Proceeds:       deps.Proceeds,
		Registry:       deps.Registry,
		Funds:          deps.Funds,
		Payouts:        deps.Payouts,
		Notifier:       notifier,
		Observer:       deps.Observer,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		Operator:       deps.Operator,
		WithdrawPolicy: deps.WithdrawPolicy,
		Logger:         deps.Logger,
	})

	return Module{
		Handler:  httpadapter.Handler{Engine: engine, Logger: deps.Logger},
		Engine:   engine,
		Notifier: notifier,
	}
}

// NewInMemoryModule runs the whole context on in-process adapters: the
// memory store, the development registry and an unlimited wallet.
func NewInMemoryModule(operator common.Address, policy entities.WithdrawFailurePolicy, observer ports.OperationObserver, logger *slog.Logger) Module {
	store := memory.NewStore(logger)
	registry := memory.NewRegistry(operator)
	wallet := memory.NewWallet()

	module := NewModule(Dependencies{
		Listings:       store,
		Proceeds:       store,
		Payouts:        store,
		Outbox:         store,
		Registry:       registry,
		Funds:          wallet,
		Observer:       observer,
		Clock:          store,
		IDGenerator:    store,
		Operator:       operator,
		WithdrawPolicy: policy,
		Logger:         logger,
	})
	module.Store = store
	module.Registry = registry
	module.Wallet = wallet
	return module
}
