package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/agent"
	"github.com/ekaya-inc/ekaya-analyst/pkg/builder"
	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
	"github.com/ekaya-inc/ekaya-analyst/pkg/database"
	"github.com/ekaya-inc/ekaya-analyst/pkg/explore"
	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/looker"
	"github.com/ekaya-inc/ekaya-analyst/pkg/mapper"
	"github.com/ekaya-inc/ekaya-analyst/pkg/memory"
	"github.com/ekaya-inc/ekaya-analyst/pkg/repositories"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	requestTimeout  = 3 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if *verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	repo, err := explore.LoadFile(cfg.SchemaPath, logger)
	if err != nil {
		log.Fatalf("Failed to load explore schema: %v", err)
	}

	client, err := llm.NewFromProvider(cfg.LLM.Provider, &llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	dict, err := mapper.LoadDictionary(cfg.DictionaryPath)
	if err != nil {
		log.Fatalf("Failed to load dictionary: %v", err)
	}

	var recipes *builder.Catalog
	if cfg.RecipesPath != "" {
		recipes, err = builder.LoadCatalog(cfg.RecipesPath, logger)
		if err != nil {
			logger.Warn("Recipe catalog unavailable, continuing without recipes",
				zap.String("path", cfg.RecipesPath),
				zap.Error(err))
			recipes = nil
		}
	}

	lookerClient, err := looker.NewClient(&looker.Config{
		BaseURL:      cfg.Looker.BaseURL,
		ClientID:     cfg.Looker.ClientID,
		ClientSecret: cfg.Looker.ClientSecret,
		Timezone:     cfg.Timezone,
		DefaultLimit: cfg.Looker.DefaultLimit,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create Looker client: %v", err)
	}

	var db *database.DB
	var store memory.TurnStore
	if cfg.Database.Enabled() {
		db, err = database.NewConnection(ctx, &database.Config{
			URL:             cfg.Database.URL,
			MaxConnections:  cfg.Database.MaxConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		migrationDB, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open migration connection: %v", err)
		}
		if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		if err := migrationDB.Close(); err != nil {
			logger.Warn("Failed to close migration connection", zap.Error(err))
		}

		store = repositories.NewTurnRepository(db)
	}

	mem := memory.New(store, logger)

	bot := agent.New(agent.Deps{
		Client:    client,
		Mapper:    mapper.NewMapper(client, repo, dict, cfg.Timezone, logger),
		Keyword:   builder.NewKeywordBuilder(repo, logger),
		Recipes:   recipes,
		Repo:      repo,
		Validator: explore.NewValidator(repo, cfg.Location(), cfg.DefaultRowLimit, logger),
		Looker:    lookerClient,
		Memory:    mem,
		Location:  cfg.Location(),
		Logger:    logger,
	})

	model, exploreName := repo.ModelExplore()
	fmt.Printf("ekaya-analyst %s\n", cfg.Version)
	fmt.Printf("Connected to %s/%s via %s\n", model, exploreName, cfg.Looker.BaseURL)
	fmt.Println("Type 'help' for commands, 'quit' to exit.")
	fmt.Println()

	runLoop(ctx, bot, mem)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := lookerClient.Close(shutdownCtx); err != nil {
		logger.Warn("Failed to close Looker client", zap.Error(err))
	}
	if db != nil {
		db.Close()
	}
	fmt.Println("Goodbye.")
}

func runLoop(ctx context.Context, bot *agent.Agent, mem *memory.ConversationMemory) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Print("analyst> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			return
		case "help":
			printHelp()
			continue
		case "status":
			printStatus(mem)
			continue
		case "clear":
			mem.Clear(ctx)
			fmt.Println("Conversation cleared. Starting fresh.")
			fmt.Println()
			continue
		}

		requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp := bot.HandleMessage(requestCtx, line)
		cancel()

		fmt.Println(resp.Text)
		if len(resp.Rows) > 0 {
			fmt.Printf("(%d rows)\n", len(resp.Rows))
		}
		fmt.Println()
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  help    Show this message")
	fmt.Println("  status  Show session statistics")
	fmt.Println("  clear   Reset the conversation")
	fmt.Println("  quit    Exit")
	fmt.Println()
	fmt.Println("Anything else is treated as a question about your data, for example:")
	fmt.Println("  top 5 countries by revenue last month")
	fmt.Println("  how many sessions did we get this week?")
	fmt.Println()
}

func printStatus(mem *memory.ConversationMemory) {
	stats := mem.Stats()
	fmt.Printf("Session:  %s\n", mem.SessionID())
	fmt.Printf("Turns:    %d\n", stats.TotalTurns)
	fmt.Printf("Interests tracked: %d\n", stats.DataInterestsCount)
	fmt.Printf("Patterns noticed:  %d\n", stats.QueryPatternsCount)
	fmt.Println()
}
