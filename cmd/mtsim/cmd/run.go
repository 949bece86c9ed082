package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/mtsim/config"
	"github.com/rustyeddy/mtsim/env"
	"github.com/rustyeddy/mtsim/journal"
	"github.com/rustyeddy/mtsim/market"
	"github.com/rustyeddy/mtsim/market/indicators"
	"github.com/rustyeddy/mtsim/policy"
	"github.com/rustyeddy/mtsim/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run episodes from a config file",
	Long: `Run trading episodes using settings from a configuration file.

The config file specifies the account, the episode parameters, the data
files per symbol and the driving policy.

Example:
  mtsim run --config run.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)

	data, err := loadDataset(cfg)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	account, err := sim.New(sim.Config{
		Unit:         cfg.Account.Unit,
		Balance:      cfg.Account.Balance,
		Leverage:     cfg.Account.Leverage,
		StopOutLevel: cfg.Account.StopOutLevel,
		Hedge:        cfg.Account.Hedge,
	}, data)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	e, err := env.New(account, envConfig(cfg))
	if err != nil {
		return fmt.Errorf("create env: %w", err)
	}

	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	p := buildPolicy(cfg)

	for episode := 1; episode <= cfg.Run.Episodes; episode++ {
		obs, _ := e.Reset()
		total := 0.0
		steps := 0
		for {
			result, err := e.Step(p.Act(obs))
			if err != nil {
				return fmt.Errorf("episode %d step %d: %w", episode, steps, err)
			}
			obs = result.Observation
			total += result.Reward
			steps++

			if j != nil {
				snap := journal.EquitySnapshot{
					Time:        e.TimePoints()[e.CurrentTick()],
					Balance:     result.Info.Balance,
					Equity:      result.Info.Equity,
					Margin:      result.Info.Margin,
					FreeMargin:  result.Info.FreeMargin,
					MarginLevel: result.Info.MarginLevel,
					Reward:      result.Reward,
				}
				if err := j.RecordEquity(snap); err != nil {
					return fmt.Errorf("record equity: %w", err)
				}
			}

			if result.Terminated {
				break
			}
		}

		closed := e.Account().ClosedOrders()
		if j != nil {
			for _, o := range closed {
				rec := journal.OrderRecord{
					OrderID:     o.ID,
					Symbol:      o.Symbol,
					Side:        o.Side.String(),
					Volume:      o.Volume,
					EntryPrice:  o.EntryPrice,
					ExitPrice:   o.ExitPrice,
					EntryTime:   o.EntryTime,
					ExitTime:    o.ExitTime,
					GrossProfit: o.GrossProfit,
					Profit:      o.Profit,
					Fee:         o.Fee,
					Margin:      o.Margin,
					Reason:      "closed",
				}
				if err := j.RecordOrder(rec); err != nil {
					return fmt.Errorf("record order: %w", err)
				}
			}
		}

		log.Info().Int("episode", episode).Int("steps", steps).
			Int("closed_orders", len(closed)).
			Float64("balance", e.Account().Balance()).
			Float64("equity", e.Account().Equity()).
			Float64("total_reward", total).
			Msg("episode finished")

		fmt.Printf("Episode %d: %d steps, %d closed orders, balance %.2f, equity %.2f, reward %.2f\n",
			episode, steps, len(closed), e.Account().Balance(), e.Account().Equity(), total)
	}

	return nil
}

// loadDataset reads every configured symbol's bars and runs its indicator
// pipeline.
func loadDataset(cfg *config.Config) (*market.Dataset, error) {
	data := market.NewDataset()
	for _, sc := range cfg.Data.Symbols {
		info := market.DefaultSymbolInfo(sc.Name, sc.CurrencyMargin, sc.CurrencyProfit)
		s, err := market.LoadSeriesCSV(filepath.Join(cfg.Data.Dir, sc.File), info)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sc.Name, err)
		}

		if len(sc.Indicators) > 0 {
			inds := make([]indicators.Indicator, 0, len(sc.Indicators))
			for _, spec := range sc.Indicators {
				ind, err := indicators.Parse(spec)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", sc.Name, err)
				}
				inds = append(inds, ind)
			}
			indicators.Apply(s, inds...)
		}

		if err := data.Add(s); err != nil {
			return nil, err
		}
		log.Info().Str("symbol", sc.Name).Int("bars", s.Len()).
			Int("features", s.FeatureDim()).Msg("loaded series")
	}
	return data, nil
}

func envConfig(cfg *config.Config) env.Config {
	ec := env.Config{
		TradingSymbols:       cfg.Env.Symbols,
		WindowSize:           cfg.Env.WindowSize,
		HoldThreshold:        cfg.Env.HoldThreshold,
		CloseThreshold:       cfg.Env.CloseThreshold,
		Fee:                  cfg.Env.Fee,
		FeeKind:              sim.FeeKind(cfg.Env.FeeKind),
		SL:                   cfg.Env.StopLoss,
		TP:                   cfg.Env.TakeProfit,
		SLTPKind:             sim.ThresholdKind(cfg.Env.SLTPKind),
		TrailingDistance:     cfg.Env.TrailingDistance,
		SymbolMaxOrders:      cfg.Env.SymbolMaxOrders,
		DiscreteActionsCount: cfg.Env.DiscreteActionsCount,
		NormalizeObservation: cfg.Env.NormalizeObservation,
		OrderDetailCount:     cfg.Env.OrderDetailCount,
	}
	switch cfg.Env.ActionMode {
	case "discrete":
		ec.ActionMode = env.ActionDiscrete
	case "structured":
		ec.ActionMode = env.ActionStructured
	default:
		ec.ActionMode = env.ActionContinuous
	}
	if cfg.Env.ObservationMode == "flattened" {
		ec.ObservationMode = env.ObservationFlattened
	}
	if cfg.Env.VolumeBasis == "free_margin" {
		ec.VolumeBasis = env.BasisFreeMargin
	}
	return ec
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.OrdersFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return nil, nil
}

func buildPolicy(cfg *config.Config) policy.Policy {
	shape := policy.Shape{
		Symbols:         len(cfg.Env.Symbols),
		SymbolMaxOrders: cfg.Env.SymbolMaxOrders,
		DiscreteActions: cfg.Env.DiscreteActionsCount,
	}
	if !cfg.Account.Hedge {
		// netting accounts carry at most one order per symbol
		shape.SymbolMaxOrders = 1
	}
	switch cfg.Env.ActionMode {
	case "discrete":
		shape.Mode = env.ActionDiscrete
	case "structured":
		shape.Mode = env.ActionStructured
	default:
		shape.Mode = env.ActionContinuous
	}
	if shape.SymbolMaxOrders < 1 {
		shape.SymbolMaxOrders = 1
	}
	if shape.DiscreteActions < 1 {
		shape.DiscreteActions = 3
	}

	if cfg.Run.Policy == "noop" {
		return policy.NewNoop(shape)
	}
	return policy.NewRandom(shape, cfg.Run.Seed)
}
