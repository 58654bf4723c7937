package main

import (
	"context"
	"time"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

func defaultConcerts() []domain.Concert {
	jst := time.FixedZone("JST", 9*60*60)

	return []domain.Concert{
		{
			Name:   "POISONYA SYNDROME",
			Artist: "Nekomata Okayu",
			Price:  50,
			Stock:  3000,
			Venue:  "Tachikawa Stage Garden",
			Date:   time.Date(2026, time.November, 15, 20, 0, 0, 0, jst),
		},
		{
			Name:   "Ahoy!! You're All Pirates",
			Artist: "Houshou Marine",
			Price:  70,
			Stock:  20000,
			Venue:  "K-Arena",
			Date:   time.Date(2026, time.February, 10, 19, 0, 0, 0, jst),
		},
	}
}

// seed fills an empty catalog and creates the configured default account
// when no buyer exists.
func (a *app) seed(ctx context.Context) error {
	n, err := a.catalog.Seed(ctx, defaultConcerts())
	if err != nil {
		return err
	}
	a.logger.WithField("concerts", n).Info("catalog seeded")

	if a.cfg.Seed.Username == "" {
		return nil
	}

	created, err := a.authn.EnsureBuyer(ctx, a.cfg.Seed.Username, a.cfg.Seed.Password)
	if err != nil {
		return err
	}
	if created {
		a.logger.WithField("username", a.cfg.Seed.Username).Info("default account created")
	}
	return nil
}
