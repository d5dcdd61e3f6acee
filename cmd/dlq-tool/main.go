package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"retail-pos-system/internal/adapters/messaging/kafka"
	"retail-pos-system/internal/config"
	"retail-pos-system/internal/observability"
)

func main() {
	// --- Configuration Setup ---
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		observability.SetupLogger("").Error("Failed to load config", "ERROR", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)

	// --- Component Initialization ---
	var kafkaBrokers string
	var dlqTopic string

	var rootCmd = &cobra.Command{Use: "dlq-tool", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVar(&kafkaBrokers, "brokers", cfg.Kafka.BootstrapServers, "Адреса брокеров Kafka")
	rootCmd.PersistentFlags().StringVar(&dlqTopic, "dlq-topic", cfg.Kafka.DLQTopic, "Имя DLQ топика")

	var viewCmd = &cobra.Command{
		Use:   "view",
		Short: "Просмотреть сообщения в DLQ",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			logger.Info("просмотр последних сообщений", "topic", dlqTopic, "limit", limit)

			client, err := kgo.NewClient(
				kgo.SeedBrokers(strings.Split(kafkaBrokers, ",")...),
				kgo.ConsumerGroup("dlq-tool-viewer"),
				kgo.ConsumeTopics(dlqTopic),
				kgo.FetchMaxWait(5*time.Second),
				// Начинаем читать с самого начала топика
				kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
			)
			if err != nil {
				return fmt.Errorf("не удалось создать consumer: %w", err)
			}
			defer client.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTITION:OFFSET\tSALE ID\tERROR_TYPE\tERROR_STRING")
			fmt.Fprintln(w, "----------------\t-------\t----------\t------------")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			msgCount := 0
			for msgCount < limit {
				fetches := client.PollFetches(ctx)
				if fetches.IsClientClosed() || ctx.Err() != nil {
					break
				}
				if len(fetches.Records()) == 0 {
					logger.Info("больше нет сообщений в топике")
					break
				}

				fetches.EachRecord(func(record *kgo.Record) {
					if msgCount >= limit {
						return
					}
					errorType, errorString := kafka.ErrorHeaders(record.Headers)
					fmt.Fprintf(w, "%d:%d\t%s\t%s\t%s\n", record.Partition, record.Offset, string(record.Key), errorType, errorString)
					msgCount++
				})
			}
			return w.Flush()
		},
	}
	viewCmd.Flags().Int("limit", 10, "Количество сообщений для просмотра")

	var retryCmd = &cobra.Command{
		Use:   "retry [partition:offset]",
		Short: "Повторно отправить сообщение из DLQ по его партиции и offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetTopic, _ := cmd.Flags().GetString("target-topic")
			partition, offset, err := parsePartitionOffset(args[0])
			if err != nil {
				return err
			}
			logger.Info("повторная отправка сообщения", "from_topic", dlqTopic, "partition", partition, "offset", offset, "to_topic", targetTopic)

			brokers := strings.Split(kafkaBrokers, ",")
			// Producer для отправки сообщения
			producer, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
			if err != nil {
				return fmt.Errorf("не удалось создать producer: %w", err)
			}
			defer producer.Close()

			// Consumer для чтения одного конкретного сообщения
			consumer, err := kgo.NewClient(
				kgo.SeedBrokers(brokers...),
				kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
					dlqTopic: {partition: kgo.NewOffset().At(offset)},
				}),
			)
			if err != nil {
				return fmt.Errorf("не удалось создать consumer: %w", err)
			}
			defer consumer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			logger.Info("чтение сообщения по указанному offset...")
			fetches := consumer.PollFetches(ctx)
			if err := fetches.Err(); err != nil {
				return fmt.Errorf("не удалось прочитать сообщение: %w", err)
			}
			records := fetches.Records()
			if len(records) == 0 || records[0].Offset != offset {
				return fmt.Errorf("сообщение %d:%d не найдено", partition, offset)
			}
			record := records[0]

			retryRecord := &kgo.Record{
				Topic: targetTopic,
				Value: record.Value,
				Key:   record.Key,
			}
			// Отправляем синхронно, чтобы дождаться результата
			if err := producer.ProduceSync(ctx, retryRecord).FirstErr(); err != nil {
				return fmt.Errorf("не удалось повторно отправить сообщение: %w", err)
			}

			logger.Info("сообщение успешно отправлено на повторную обработку", "sale_id", string(record.Key))
			return nil
		},
	}
	retryCmd.Flags().String("target-topic", cfg.Kafka.Topic, "Топик для повторной отправки сообщения")

	rootCmd.AddCommand(viewCmd, retryCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("ошибка выполнения команды", "ERROR", err)
		os.Exit(1)
	}
}

// parsePartitionOffset парсит строку "partition:offset"
func parsePartitionOffset(arg string) (int32, int64, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("неверный формат %q, ожидается partition:offset, например 0:123", arg)
	}
	partition, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil || partition < 0 {
		return 0, 0, fmt.Errorf("неверный номер партиции %q", parts[0])
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("неверный offset %q", parts[1])
	}
	return int32(partition), offset, nil
}
