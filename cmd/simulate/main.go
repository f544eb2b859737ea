package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/simulation"
)

func main() {
	cfg := simulation.DefaultConfig()

	concepts := flag.String("concepts", strings.Join(cfg.Concepts, ","), "comma separated concept names")
	flag.Float64Var(&cfg.DefaultAccuracy, "accuracy", cfg.DefaultAccuracy, "probability of a correct answer")
	flag.IntVar(&cfg.MaxQuizzes, "max-quizzes", cfg.MaxQuizzes, "stop after this many quizzes")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "sqlite database path")
	flag.BoolVar(&cfg.Placement, "placement", cfg.Placement, "start with a shared placement quiz")
	verbose := flag.Bool("v", false, "log every step")
	flag.Parse()

	cfg.Concepts = strings.Split(*concepts, ",")

	log := logger.NewNop()
	if *verbose {
		log = logger.New("dev", "")
	}
	defer log.Sync()

	report, err := simulation.Run(context.Background(), cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}

	for _, r := range report.Rounds {
		fmt.Printf("quiz v%d: %d/%d correct\n", r.Version, r.Correct, r.Questions)
		for _, c := range r.Concepts {
			fmt.Printf("  %-20s asked=%-3d score=%.2f variance=%.2f mastered=%v\n",
				c.Name, c.Asked, c.Score, c.Variance, c.Mastered)
		}
	}
	fmt.Printf("block mastered: %v after %d quizzes\n", report.Mastered, len(report.Rounds))
}
