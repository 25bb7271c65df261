package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sectordocs/caodex/internal/config"
	"github.com/sectordocs/caodex/internal/repository"
	"github.com/sectordocs/caodex/internal/service"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search ingested documents",
		Long:  "Embed the query and print the closest chunks by cosine distance",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("count", "k", 5, "Number of chunks to return")
	cmd.Flags().String("document", "", "Restrict search to one document id")

	return cmd
}

// previewContent truncates chunk text for terminal output. Counts runes, not
// bytes, so accented text is never cut mid-character.
func previewContent(content string, maxRunes int) string {
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	embedder, err := newEmbeddingClient(cfg)
	if err != nil {
		return err
	}

	retrieval := service.NewRetrieval(repository.NewChunkRepository(pool), embedder)

	matchCount, _ := cmd.Flags().GetInt("count")
	documentID, _ := cmd.Flags().GetString("document")

	matches, err := retrieval.Search(ctx, service.SearchInput{
		Query:      strings.Join(args, " "),
		MatchCount: matchCount,
		DocumentID: documentID,
	})
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}

	for _, m := range matches {
		fmt.Printf("%s (pages %d-%d, distance %.4f)\n", m.ChunkID, m.PageStart, m.PageEnd, m.Distance)
		fmt.Printf("  %s\n\n", previewContent(m.Content, 200))
	}
	return nil
}
