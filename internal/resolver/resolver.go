package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ninja0404/whale-signal/internal/model"
)

// Resolver 并行查询元数据与价格
type Resolver struct {
	metadata *MetadataResolver
	price    *PriceResolver
}

func New(metadata *MetadataResolver, price *PriceResolver) *Resolver {
	return &Resolver{metadata: metadata, price: price}
}

// Resolve 两个查询各自兜底，不会返回错误
func (r *Resolver) Resolve(ctx context.Context, token model.WatchedToken) (model.TokenMetadata, model.PriceQuote) {
	var (
		meta  model.TokenMetadata
		quote model.PriceQuote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		meta = r.metadata.Resolve(gctx, token.TokenAddress)
		return nil
	})
	g.Go(func() error {
		quote = r.price.Resolve(gctx, token.TokenAddress)
		return nil
	})
	_ = g.Wait()

	return meta, quote
}

// Purge 清理两个缓存里的过期条目，返回清理总数
func (r *Resolver) Purge() int {
	return r.metadata.Purge() + r.price.Purge()
}

func (r *Resolver) IsStablecoin(token model.WatchedToken) bool {
	return r.price.IsStablecoin(token.TokenAddress)
}
