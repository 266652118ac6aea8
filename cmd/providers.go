/*
Copyright © 2021 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Finnhub-Stock-API/finnhub-go"
	"github.com/ajjensen13/config"
	"github.com/ajjensen13/gke"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/kabu/internal/calendar"
)

const (
	dbSecretName  = "kabu-db-secret.json"
	appConfigName = "kabu-config-cm.json"
	apiSecretName = "kabu-api-secret.json"
)

type appConfig struct {
	Workers            int       `json:"workers"`
	RequestIntervalMs  int       `json:"request_interval_ms"`
	MaxRetries         int       `json:"max_retries"`
	BackoffCapSeconds  int       `json:"backoff_cap_seconds"`
	LookbackYears      int       `json:"lookback_years"`
	Resolution         string    `json:"resolution"`
	Timezone           string    `json:"timezone"`
	Holidays           []string  `json:"holidays"`
	OverrideDate       time.Time `json:"override_date"`
	DataSourceName     string    `json:"data_source_name"`
	MigrationSourceURL string    `json:"migration_source_url"`
}

type appSecrets struct {
	ApiKey string `json:"api_key"`
}

func provideAppConfig() (*appConfig, error) {
	var result appConfig
	err := config.InterfaceJson(appConfigName, &result)
	if err != nil {
		return nil, err
	}

	if result.Workers == 0 {
		result.Workers = 2
	}
	if result.RequestIntervalMs == 0 {
		result.RequestIntervalMs = 500
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = 3
	}
	if result.BackoffCapSeconds == 0 {
		result.BackoffCapSeconds = 60
	}
	if result.LookbackYears == 0 {
		result.LookbackYears = 3
	}
	if result.Resolution == "" {
		result.Resolution = "D"
	}

	switch {
	case result.Workers < 0:
		return nil, fmt.Errorf("invalid configuration: workers must be positive, got %d", result.Workers)
	case result.RequestIntervalMs < 0:
		return nil, fmt.Errorf("invalid configuration: request_interval_ms must be positive, got %d", result.RequestIntervalMs)
	case result.MaxRetries < 0:
		return nil, fmt.Errorf("invalid configuration: max_retries must not be negative, got %d", result.MaxRetries)
	case result.DataSourceName == "":
		return nil, fmt.Errorf("invalid configuration: data_source_name is required")
	}

	return &result, nil
}

func provideAppSecrets() (*appSecrets, error) {
	var result appSecrets
	err := config.InterfaceJson(apiSecretName, &result)
	if err != nil {
		return nil, err
	}
	if result.ApiKey == "" {
		return nil, fmt.Errorf("invalid configuration: api_key is required")
	}
	return &result, nil
}

func provideDbSecrets() (*url.Userinfo, error) {
	ui, err := config.Userinfo(dbSecretName)
	if err != nil {
		return nil, err
	}
	return ui, nil
}

func provideTimezone(cfg *appConfig) (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(cfg.Timezone)
}

func provideHolidays(cfg *appConfig, tz *time.Location) ([]time.Time, error) {
	ret := make([]time.Time, 0, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		d, err := time.ParseInLocation("2006-01-02", h, tz)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: holiday %q: %w", h, err)
		}
		ret = append(ret, d)
	}
	return ret, nil
}

func provideTradingCalendar(tz *time.Location, holidays []time.Time) *calendar.Calendar {
	return calendar.New(tz, holidays)
}

func provideApiServiceClient() *finnhub.DefaultApiService {
	return finnhub.NewAPIClient(finnhub.NewConfiguration()).DefaultApi
}

func provideBarFetcher(lg gke.Logger, client *finnhub.DefaultApiService, secrets *appSecrets, cfg *appConfig, tz *time.Location, now runDate) *finnhubFetcher {
	return &finnhubFetcher{
		lg:     lg,
		client: client,
		apiKey: secrets.ApiKey,
		cfg:    cfg,
		tz:     tz,
		now:    time.Time(now),
	}
}

// newBackOff builds the retry budget for a single request. The fetcher
// constructs a fresh one per symbol.
func newBackOff(cfg *appConfig) backoff.BackOff {
	ret := backoff.NewExponentialBackOff()
	ret.InitialInterval = time.Second
	ret.Multiplier = 2
	ret.MaxInterval = time.Duration(cfg.BackoffCapSeconds) * time.Second
	ret.MaxElapsedTime = 0
	return backoff.WithMaxRetries(ret, uint64(cfg.MaxRetries))
}

func provideRunDate(cfg *appConfig, tz *time.Location) runDate {
	if cfg.OverrideDate.IsZero() {
		return runDate(time.Now().In(tz))
	}
	return runDate(cfg.OverrideDate.In(tz))
}

type runDate time.Time

func provideDataSourceName(user *url.Userinfo, cfg *appConfig) (dsn *url.URL, err error) {
	dsn, err = url.Parse(cfg.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data source name: %w", err)
	}
	dsn.User = user

	return dsn, nil
}

func provideDbConnPool(ctx context.Context, dsn *url.URL, cfg *appConfig) (ret *pgxpool.Pool, cleanup func(), err error) {
	// one connection per worker, checked out for the duration of one
	// symbol's unit of work
	cs := *dsn
	q := cs.Query()
	q.Set("pool_max_conns", strconv.Itoa(cfg.Workers))
	cs.RawQuery = q.Encode()

	pool, err := pgxpool.Connect(ctx, cs.String())
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open database connection pool: %w", err)
	}

	return pool, pool.Close, nil
}

func provideLogger() (lg gke.Logger, cleanup func()) {
	lg, cleanup, err := gke.NewLogger(context.Background())
	if err != nil {
		panic(err)
	}

	gke.LogEnv(lg)
	gke.LogMetadata(lg)

	return lg, cleanup
}

func provideMigrationSourceURL(cfg *appConfig) string {
	return cfg.MigrationSourceURL
}

func provideMigrator(lg gke.Logger, databaseURL *url.URL, sourceURL string) (m *migrate.Migrate, err error) {
	m, err = migrate.New(sourceURL, databaseURL.String())
	if err != nil {
		return nil, err
	}
	m.Log = migrationLogger{lg}
	return m, err
}

type migrationLogger struct {
	gke.Logger
}

func (m migrationLogger) Printf(format string, v ...interface{}) {
	m.Defaultf(format, v...)
}

func (m migrationLogger) Verbose() bool {
	return false
}
