// Command fishcast serves and runs day-by-day fishing-condition forecasts
// built from cached historical weather.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"fishcast/internal/api"
	"fishcast/internal/artifact"
	"fishcast/internal/forecast"
	"fishcast/internal/histcache"
	"fishcast/internal/ingest"
	"fishcast/internal/models"
	"fishcast/internal/pipeline"
	"fishcast/internal/rating"
	"fishcast/internal/store"
)

type serveCmd struct {
	Addr string `help:"HTTP listen address." default:":8080" env:"FISHCAST_ADDR"`
}

type forecastCmd struct {
	Lat  float64 `required:"" help:"Latitude in decimal degrees."`
	Lon  float64 `required:"" help:"Longitude in decimal degrees."`
	Date string  `help:"Target date (YYYY-MM-DD). Empty runs the default horizon."`
}

var cli struct {
	DB           string        `help:"SQLite database path." default:"fishcast.db" env:"FISHCAST_DB"`
	DataDir      string        `help:"Directory for forecast artifacts." default:"data" env:"FISHCAST_DATA_DIR"`
	LagDays      int           `help:"Upstream archive latency in days." default:"3" env:"FISHCAST_LAG_DAYS"`
	HorizonDays  int           `help:"Default forecast length in days." default:"7" env:"FISHCAST_HORIZON_DAYS"`
	MaxLookahead int           `help:"Maximum days past the latest known data a target may reach." default:"60" env:"FISHCAST_MAX_LOOKAHEAD"`
	HistoryDays  int           `help:"Days of history fetched per coordinate." default:"400" env:"FISHCAST_HISTORY_DAYS"`
	StaleAfter   time.Duration `help:"Cached history refresh threshold." default:"24h" env:"FISHCAST_STALE_AFTER"`
	FetchTimeout time.Duration `help:"Timeout for one upstream history fetch." default:"3m" env:"FISHCAST_FETCH_TIMEOUT"`
	FitTimeout   time.Duration `help:"Timeout for the model-fitting stage of one run." default:"1m" env:"FISHCAST_FIT_TIMEOUT"`
	FitWorkers   int           `help:"Concurrent model fits per run." default:"4" env:"FISHCAST_FIT_WORKERS"`
	OpenAIKey    string        `help:"OpenAI API key for recommendation enrichment. Empty disables it." env:"OPENAI_API_KEY"`

	FTPAddr     string `help:"FTP mirror host:port. Empty disables mirroring." env:"FISHCAST_FTP_ADDR"`
	FTPUser     string `env:"FISHCAST_FTP_USER"`
	FTPPassword string `env:"FISHCAST_FTP_PASSWORD"`
	FTPDir      string `help:"Remote FTP directory for mirrored artifacts." env:"FISHCAST_FTP_DIR"`

	Debug bool `help:"Enable debug logging."`

	Serve    serveCmd    `cmd:"" help:"Run the HTTP API server."`
	Forecast forecastCmd `cmd:"" help:"Run a single forecast and print the result."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("fishcast"),
		kong.Description("Day-by-day fishing condition forecasts from cached historical weather."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if cli.Debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, kctx.Command(), log); err != nil {
		log.Fatal().Err(err).Msg("fishcast exited")
	}
}

func run(ctx context.Context, command string, log zerolog.Logger) error {
	db, err := openDB(cli.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st := store.New(db, log)
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	p, err := buildPipeline(st, log)
	if err != nil {
		return err
	}

	switch command {
	case "serve":
		return api.NewServer(cli.Serve.Addr, p, log).Run(ctx)
	case "forecast":
		return runOnce(ctx, p)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func buildPipeline(st *store.Store, log zerolog.Logger) (*pipeline.Pipeline, error) {
	client := ingest.NewClient(log)
	fetcher := ingest.NewHistoricalFetcher(client, cli.HistoryDays, cli.FetchTimeout, log)
	cache := histcache.New(st, fetcher, log, histcache.WithStaleAfter(cli.StaleAfter))

	planner := &forecast.Planner{
		LagDays:          cli.LagDays,
		DefaultDays:      cli.HorizonDays,
		MaxLookaheadDays: cli.MaxLookahead,
	}

	var summarizer rating.Summarizer
	if cli.OpenAIKey != "" {
		s, err := rating.NewOpenAISummarizer(cli.OpenAIKey)
		if err != nil {
			return nil, fmt.Errorf("configure summarizer: %w", err)
		}
		summarizer = s
	} else {
		log.Info().Msg("no OpenAI key configured, using rule-based recommendations only")
	}
	engine := rating.NewEngine(summarizer, log)

	writer := artifact.NewWriter(cli.DataDir)

	opts := []pipeline.Option{
		pipeline.WithFitWorkers(cli.FitWorkers),
		pipeline.WithFitTimeout(cli.FitTimeout),
		pipeline.WithArtifactIndex(st),
	}
	if cli.FTPAddr != "" {
		mirror := artifact.NewMirror(artifact.MirrorConfig{
			Addr:     cli.FTPAddr,
			User:     cli.FTPUser,
			Password: cli.FTPPassword,
			Dir:      cli.FTPDir,
		}, log)
		opts = append(opts, pipeline.WithMirror(mirror))
	}

	return pipeline.New(cache, planner, engine, writer, log, opts...), nil
}

func runOnce(ctx context.Context, p *pipeline.Pipeline) error {
	req := models.ForecastRequest{
		Coordinate: models.Coordinate{Latitude: cli.Forecast.Lat, Longitude: cli.Forecast.Lon},
	}
	if cli.Forecast.Date != "" {
		target, err := time.ParseInLocation("2006-01-02", cli.Forecast.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("target date %q: want YYYY-MM-DD", cli.Forecast.Date)
		}
		req.TargetDate = target
	}

	art, err := p.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("forecast %s to %s (%d days)\n",
		art.Horizon.StartDate.Format("2006-01-02"),
		art.Horizon.EndDate().Format("2006-01-02"),
		art.Horizon.LengthDays)
	for _, rec := range art.Records {
		fmt.Printf("%s  %-13s air %5.1f°C  pressure %6.2f kPa  wind %4.1f m/s  water %5.1f°C  %s\n",
			rec.Date.Format("2006-01-02"), rec.MoonPhase,
			rec.AirTempC, rec.PressureKPa, rec.WindSpeedMS, rec.WaterTempC, rec.Rating)
	}
	fmt.Printf("artifact: %s\n", art.Path)
	return nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
