package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nursemate/internal/ai/ingest"
	"nursemate/internal/config"
	"nursemate/internal/pkg/embedding"
	"nursemate/internal/pkg/pinecone"
	"nursemate/internal/pkg/storage"
	"nursemate/internal/pkg/storagefactory"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load study material into the knowledge base",
	Long: `Split text or markdown documents into blank-line separated chunks, embed them
and upsert them into the configured Pinecone index. Documents come from local
files (--file) or from the materials store (--prefix, local directory or OSS).
Re-ingesting the same document overwrites its chunks.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	flags := ingestCmd.Flags()
	flags.StringSliceP("file", "f", nil, "local file to ingest (repeatable)")
	flags.String("prefix", "", "ingest every .txt/.md object under this prefix of the materials store")
	flags.String("source", "", "source name stored with each chunk (default: file name)")
	flags.String("namespace", "", "Pinecone namespace (default: vector.namespace)")
	flags.Int("batch-size", ingest.DefaultBatchSize, "chunks per embedding request")
	flags.Int("max-chunk", ingest.DefaultMaxRunes, "maximum characters per chunk")
	flags.Duration("timeout", 10*time.Minute, "overall timeout")
	ingestCmd.MarkFlagsOneRequired("file", "prefix")

	_ = viper.BindPFlag("vector.namespace", flags.Lookup("namespace"))
}

// document 待导入文档
type document struct {
	source string
	load   func(ctx context.Context) (string, error)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Vector.APIKey == "" {
		return errors.New("vector.api_key is required (env: NURSEMATE_VECTOR_API_KEY)")
	}

	files, _ := cmd.Flags().GetStringSlice("file")
	prefix, _ := cmd.Flags().GetString("prefix")
	source, _ := cmd.Flags().GetString("source")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	maxChunk, _ := cmd.Flags().GetInt("max-chunk")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	docs := localDocuments(files, source)
	if cmd.Flags().Changed("prefix") {
		stored, err := storedDocuments(ctx, cfg.Materials, prefix)
		if err != nil {
			return err
		}
		docs = append(docs, stored...)
	}
	if len(docs) == 0 {
		return errors.New("no documents to ingest")
	}

	pc, err := pinecone.New(&cfg.Vector)
	if err != nil {
		return err
	}
	index, err := pinecone.OpenIndex(ctx, pc, cfg.Vector.IndexName, cfg.Vector.IndexHost, cfg.Vector.Namespace)
	if err != nil {
		return err
	}
	ing := ingest.New(embedding.New(&cfg.Embedding), index, batchSize, maxChunk)

	var total int64
	for _, doc := range docs {
		text, err := doc.load(ctx)
		if err != nil {
			return err
		}
		n, err := ing.Run(ctx, doc.source, text)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", doc.source, err)
		}
		total += n
		log.Info().Str("source", doc.source).Int64("vectors", n).Msg("document ingested")
	}

	log.Info().Int("documents", len(docs)).Int64("vectors", total).Str("namespace", cfg.Vector.Namespace).Msg("ingest completed")
	return nil
}

func localDocuments(files []string, source string) []document {
	docs := make([]document, 0, len(files))
	for _, p := range files {
		path := p
		name := source
		if name == "" || len(files) > 1 {
			name = filepath.Base(path)
		}
		docs = append(docs, document{
			source: name,
			load: func(context.Context) (string, error) {
				data, err := os.ReadFile(path)
				if err != nil {
					return "", fmt.Errorf("read %s: %w", path, err)
				}
				return string(data), nil
			},
		})
	}
	return docs
}

func storedDocuments(ctx context.Context, cfg config.StorageConfig, prefix string) ([]document, error) {
	store, err := storagefactory.NewStorage(&cfg)
	if err != nil {
		return nil, fmt.Errorf("open materials store: %w", err)
	}
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	docs := make([]document, 0, len(objects))
	for _, obj := range objects {
		if !storage.IsText(obj.Key) {
			log.Debug().Str("key", obj.Key).Msg("skipping non-text object")
			continue
		}
		key := obj.Key
		docs = append(docs, document{
			source: store.Type() + ":" + key,
			load: func(ctx context.Context) (string, error) {
				rc, err := store.Open(ctx, key)
				if err != nil {
					return "", err
				}
				defer rc.Close()
				data, err := io.ReadAll(rc)
				if err != nil {
					return "", fmt.Errorf("read %s: %w", key, err)
				}
				return string(data), nil
			},
		})
	}
	return docs, nil
}
