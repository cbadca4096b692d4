package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mabhi256/xmx/internal/agent"
	"github.com/mabhi256/xmx/internal/config"
	"github.com/mabhi256/xmx/internal/jvm"
)

// DefaultConfig selects the shop classes and wires every demo library.
const DefaultConfig = `{
  "properties": {"enabled": true, "maxInstances": 100},
  "apps": [
    {
      "pattern": "shop",
      "properties": {
        "adviceSearchPath": ["metrics@^1.0", "guard", "promo@>=2.0.0", "audit", "legacy"]
      },
      "classes": [
        {
          "pattern": "com.acme.shop.Cart",
          "properties": {
            "managed": true,
            "maxInstances": 64,
            "advices": ["metrics:Timing", "audit:Audit"]
          },
          "methods": [
            {"pattern": "public int addItem(String, int)",
             "properties": {"advices": ["metrics:Timing", "guard:Clamp", "audit:Audit", "legacy:Logger"]}},
            {"pattern": "public int total()",
             "properties": {"advices": ["metrics:Timing", "promo:Discount"]}}
          ]
        },
        {
          "pattern": "Cart$$Proxy",
          "properties": {"managed": true, "maxInstances": 16}
        }
      ]
    }
  ]
}`

// Environment is a running shop with the agent attached.
type Environment struct {
	Agent *agent.Agent
	Shop  *Shop
	Stats *Stats
}

// Start defines the shop, transforms it and installs the agent. A nil cfg
// uses DefaultConfig.
func Start(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Environment, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Parse([]byte(DefaultConfig), log); err != nil {
			return nil, err
		}
	}

	stats := NewStats()
	repo, err := Repository(stats)
	if err != nil {
		return nil, fmt.Errorf("advice repository: %w", err)
	}

	a := agent.New(agent.Options{Config: cfg, Repository: repo, Log: log})
	shop, err := DefineShop(jvm.NewLoader(AppName, nil))
	if err != nil {
		return nil, err
	}
	if _, err := a.TransformAll(ctx, shop.Loader); err != nil {
		return nil, err
	}
	a.Install()
	return &Environment{Agent: a, Shop: shop, Stats: stats}, nil
}

// Close uninstalls the agent and disposes the shop's scope.
func (e *Environment) Close() {
	e.Agent.Close()
	e.Shop.Loader.Dispose()
}

// Workload drives the shop with random traffic. It keeps a bounded set of
// carts alive so that older ones become collectable.
type Workload struct {
	shop *Shop
	rng  *rand.Rand

	mu    sync.Mutex
	carts []*jvm.Object
	keep  int
}

func NewWorkload(shop *Shop, seed uint64, keep int) *Workload {
	return &Workload{
		shop: shop,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		keep: keep,
	}
}

var skus = []string{"apple", "bread", "cheese", "coffee", "caviar"}

// Step opens a cart, fills it, and sometimes checks out or proxies it.
// Application exceptions are part of the workload and are not returned.
func (w *Workload) Step() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cart, err := w.shop.Cart.New()
	if err != nil {
		return fmt.Errorf("new cart: %w", err)
	}
	add := w.shop.Cart.MethodByName("addItem")
	for range 1 + w.rng.IntN(4) {
		_, _ = add.Invoke(cart, skus[w.rng.IntN(len(skus))], w.rng.IntN(25))
	}
	if _, err := w.shop.Cart.MethodByName("total").Invoke(cart); err != nil {
		return fmt.Errorf("total: %w", err)
	}
	if w.rng.IntN(3) == 0 {
		_, _ = w.shop.Cart.MethodByName("checkout").Invoke(cart)
	}
	if w.rng.IntN(5) == 0 {
		if _, err := w.shop.CartProxy.New(cart); err != nil {
			return fmt.Errorf("new proxy: %w", err)
		}
	}

	w.carts = append(w.carts, cart)
	if len(w.carts) > w.keep {
		w.carts = slices.Delete(w.carts, 0, len(w.carts)-w.keep)
	}
	return nil
}

// Run steps every interval until ctx is done.
func (w *Workload) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Step(); err != nil {
				return err
			}
		}
	}
}
