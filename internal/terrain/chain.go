package terrain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Chain tries providers in order and returns the first success. Failures are
// logged as warnings. When every provider fails the result is ErrUnavailable.
func Chain(logger *zap.SugaredLogger, providers ...Provider) Provider {
	return ProviderFunc(func(ctx context.Context, req Request) (*Layers, error) {
		var last error = ErrUnavailable
		for _, p := range providers {
			layers, err := p.Layers(ctx, req)
			if err == nil {
				return layers, nil
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
			logger.Warnf("terrain provider failed for tile %s at %s: %v", req.TileID, req.Resolution, err)
			last = err
		}
		if !errors.Is(last, ErrUnavailable) {
			last = fmt.Errorf("%w: %v", ErrUnavailable, last)
		}
		return nil, last
	})
}
