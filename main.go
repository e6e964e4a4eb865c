package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/lagscout/lagscout/cmd"
	"github.com/lagscout/lagscout/internal/infrastructure/kafka"
	"github.com/lagscout/lagscout/internal/infrastructure/repository"
	"github.com/lagscout/lagscout/internal/utils"
)

func findConfigPath() string {
	names := []string{"lagscout.yml", "lagscout.yaml", "config.yml", "config.yaml"}
	candidates := []string{}

	for _, n := range names {
		candidates = append(candidates, "./"+n)
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		for _, n := range names {
			candidates = append(candidates, filepath.Join(xdg, "lagscout", n))
		}
	}
	if home, _ := os.UserHomeDir(); home != "" {
		for _, n := range names {
			candidates = append(candidates, filepath.Join(home, ".config", "lagscout", n))
		}
	}
	for _, n := range names {
		candidates = append(candidates, filepath.Join("/etc", "lagscout", n))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return candidates[0]
}

func main() {
	godotenv.Load()
	utils.InitLogger()

	configPath := os.Getenv("LAGSCOUT_CONFIG")
	if configPath == "" {
		configPath = findConfigPath()
	}

	factory := kafka.NewFactory()
	repo := repository.NewInstanceRepository(configPath, factory)
	defer repo.Close()

	utils.Logger.Info("loading configuration", "path", configPath)
	if err := repo.LoadFromFile(); err != nil {
		utils.Logger.Fatal("failed to load config file", "path", configPath, "err", err)
	}
	if err := repo.Watch(); err != nil {
		utils.Logger.Error("failed to start config watcher", "err", err)
		panic(err)
	}

	cmd.StartAgent(repo, factory)
}
