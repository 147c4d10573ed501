//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"deckgen-api/internal/config"
	"deckgen-api/internal/interfaces/http/router"
)

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	wire.Build(DataSet)
	return nil, nil, nil
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		DataSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步任务消费端
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DataSet,
		GenerationSet,
		ProvideJobRunner,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}
