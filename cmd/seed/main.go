package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/app/bootstrap"
	"github.com/hackgods/gp-clinic-console/internal/config"
	"github.com/hackgods/gp-clinic-console/internal/seed"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	opts := seed.DefaultOptions(time.Now())
	flag.IntVar(&opts.Clinics, "clinics", opts.Clinics, "clinics to create")
	flag.IntVar(&opts.DoctorsPerClinic, "doctors", opts.DoctorsPerClinic, "GPs per clinic")
	flag.IntVar(&opts.Patients, "patients", opts.Patients, "patients to register")
	flag.IntVar(&opts.Days, "days", opts.Days, "days of slots to create")
	flag.IntVar(&opts.SlotsPerDay, "slots-per-day", opts.SlotsPerDay, "slots per GP per day")
	flag.Float64Var(&opts.BookingRatio, "booked", opts.BookingRatio, "share of slots to book")
	flag.Uint64Var(&opts.Seed, "seed", 0, "random seed, 0 for a random one")
	flag.Parse()

	if len(cfg.AllowedEmailDomains) > 0 {
		opts.Domain = cfg.AllowedEmailDomains[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	logger.Info("seed starting", "store", cfg.StoreBackend, "data_dir", cfg.DataDir)
	sum, err := seed.Run(ctx, rt.Repo, opts, logger)
	if err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "users", sum.Users, "clinics", sum.Clinics, "doctors", sum.Doctors, "slots", sum.Slots, "appointments", sum.Appointments)
}
