package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	containerTypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var colorPalette = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
	color.New(color.FgRed),
}

// Structure for parsing docker-compose.yml
type ComposeConfig struct {
	Services map[string]interface{} `yaml:"services"`
}

// serviceNames returns the compose services in sorted order, restricted to only when it is not empty.
func serviceNames(composeFile []byte, only []string) ([]string, error) {
	var config ComposeConfig
	if err := yaml.Unmarshal(composeFile, &config); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(config.Services))
	for name := range config.Services {
		if len(only) == 0 || slices.Contains(only, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func main() {
	composePath := flag.String("f", "docker-compose.yml", "Path to docker-compose.yml")
	tail := flag.String("tail", "20", "Lines of history per service")
	flag.Parse()

	// 1. Setting up context for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initializing the Docker client
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		log.Fatalf("❌ Failed to create Docker client: %v", err)
	}
	defer func() {
		if err := cli.Close(); err != nil {
			log.Printf("⚠️  Error closing Docker client: %v", err)
		}
	}()

	// 3. Parsing docker-compose.yml to get service names; positional args narrow the set
	composeFile, err := os.ReadFile(*composePath)
	if err != nil {
		log.Fatalf("❌ Failed to read %s: %v", *composePath, err)
	}
	services, err := serviceNames(composeFile, flag.Args())
	if err != nil {
		log.Fatalf("❌ Failed to parse %s: %v", *composePath, err)
	}
	if len(services) == 0 {
		log.Fatalf("❌ No matching services in %s", *composePath)
	}

	// 4. Run log streaming for each service in a separate goroutine
	var wg sync.WaitGroup
	log.Println("Starting log streams...")

	for i, serviceName := range services {
		wg.Add(1)
		// Color to a service cyclically from a palette
		go streamServiceLogs(ctx, &wg, cli, serviceName, *tail, colorPalette[i%len(colorPalette)])
	}

	wg.Wait()
	log.Println("All log streams finished.")
}

func streamServiceLogs(ctx context.Context, wg *sync.WaitGroup, cli *client.Client, serviceName, tail string, c *color.Color) {
	defer wg.Done()

	// We will look for a container that has the label "com.docker.compose.service"
	containers, err := cli.ContainerList(ctx, containerTypes.ListOptions{})
	if err != nil {
		log.Printf("⚠️  Error listing containers for %s: %v", serviceName, err)
		return
	}

	var containerID string
	for _, cont := range containers {
		if cont.Labels["com.docker.compose.service"] == serviceName {
			containerID = cont.ID
			break
		}
	}

	if containerID == "" {
		log.Printf("⚠️  Container for service %s not found.", serviceName)
		return
	}

	logReader, err := cli.ContainerLogs(ctx, containerID, containerTypes.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       tail,
	})
	if err != nil {
		log.Printf("⚠️  Error getting logs for %s: %v", serviceName, err)
		return
	}
	defer func() {
		if err := logReader.Close(); err != nil {
			log.Printf("⚠️  Error closing log reader for %s: %v", serviceName, err)
		}
	}()

	prefix := c.Sprintf("[%s]", serviceName)
	scanner := bufio.NewScanner(logReader)
	for scanner.Scan() {
		fmt.Printf("%-25s %s\n", prefix, scanner.Text())
	}
}
