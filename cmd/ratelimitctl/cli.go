package main

import (
	"context"
	"encoding/json"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
	"fixedwindow-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	keyPrefix     string
	statsPrefix   string
	timeout       time.Duration
}

// counterView é a saída de "get".
type counterView struct {
	Key          string `json:"key"`
	Count        int64  `json:"count"`
	ResetSeconds int64  `json:"resetSeconds"`
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "ratelimitctl",
		Short:        "Inspeciona e reinicia contadores do rate limit no Redis",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "endereço do Redis")
	f.StringVar(&opts.redisPassword, "redis-password", "", "senha do Redis")
	f.IntVar(&opts.redisDB, "redis-db", 0, "database do Redis")
	f.StringVar(&opts.keyPrefix, "prefix", "ratelimit", "prefixo das chaves (RATE_KEY_PREFIX)")
	f.StringVar(&opts.statsPrefix, "stats-prefix", "ratelimit:stats", "prefixo das estatísticas (RATE_STATS_PREFIX)")
	f.DurationVar(&opts.timeout, "timeout", 2*time.Second, "timeout das operações")

	root.AddCommand(newGetCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	return root
}

func (o *rootOptions) connect(ctx context.Context) (*redis.Client, context.Context, context.CancelFunc) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     o.redisAddr,
		Password: o.redisPassword,
		DB:       o.redisDB,
	})
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	return rdb, ctx, func() {
		cancel()
		_ = rdb.Close()
	}
}

// scopeKey: com rota, a chave é a do modo por rota (identity:route).
func (o *rootOptions) scopeKey(args []string) domain.Key {
	route := ""
	if len(args) > 1 {
		route = args[1]
	}
	return domain.ScopeKey(o.keyPrefix, domain.Identity(args[0]), route, route != "")
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <identity> [route]",
		Short: "Mostra a contagem e o reset da janela atual",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, ctx, done := opts.connect(cmd.Context())
			defer done()

			store := infra.NewRedisCounterStore(rdb)
			key := opts.scopeKey(args)
			count, err := store.Get(ctx, key)
			if err != nil {
				return err
			}
			ttl, err := store.TTL(ctx, key)
			if err != nil {
				return err
			}
			view := counterView{
				Key:          string(key),
				Count:        count,
				ResetSeconds: domain.Decision{Reset: ttl}.ResetSeconds(),
			}
			return writeJSON(cmd, view)
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <identity> [route]",
		Short: "Apaga o contador (inicia uma janela nova)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, ctx, done := opts.connect(cmd.Context())
			defer done()

			key := opts.scopeKey(args)
			if err := infra.NewRedisCounterStore(rdb).Reset(ctx, key); err != nil {
				return err
			}
			cmd.Printf("reset %s\n", key)
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Mostra o total de decisões (RATE_STATS_ENABLED)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, ctx, done := opts.connect(cmd.Context())
			defer done()

			total, err := infra.NewRedisStatsStore(rdb, infra.WithStatsPrefix(opts.statsPrefix)).Total(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, total)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
