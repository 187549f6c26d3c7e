package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/menu-analytics/internal/logger"
)

// PublishStats counts the page operations of one publish.
type PublishStats struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// PublishBrandSummary makes the Notion database hold exactly one page per
// brand in rows. This function:
// 1. Queries all existing pages
// 2. Archives pages for brands no longer present, untitled pages and duplicates
// 3. Updates pages of brands still present and creates the rest
//
// Failures on single pages are logged and counted; the publish continues.
func PublishBrandSummary(ctx context.Context, notionClient NotionService, notionDBID string, rows []BrandSummary, dryRun bool) (PublishStats, error) {
	log := logger.FromContext(ctx)
	var stats PublishStats

	log.Info().
		Int("brands", len(rows)).
		Bool("dry_run", dryRun).
		Msg("Starting brand summary publish to Notion")

	wanted := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Brand == "" {
			return stats, fmt.Errorf("brand summary without a brand name")
		}
		if wanted[r.Brand] {
			return stats, fmt.Errorf("duplicate brand summary %q", r.Brand)
		}
		wanted[r.Brand] = true
	}

	pages, err := queryAllPages(ctx, notionClient, notionDBID)
	if err != nil {
		return stats, fmt.Errorf("failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	// Keep the first page per wanted brand; everything else is stale.
	existing := make(map[string]string)
	for _, page := range pages {
		brand := extractBrand(page)
		if brand != "" && wanted[brand] {
			if _, seen := existing[brand]; !seen {
				existing[brand] = string(page.ID)
				continue
			}
		}

		if dryRun {
			log.Info().
				Str("brand", brand).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("brand", brand).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	for _, r := range rows {
		pageID, ok := existing[r.Brand]

		if dryRun {
			if ok {
				log.Info().Str("brand", r.Brand).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			} else {
				log.Info().Str("brand", r.Brand).Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		props := BrandSummaryToNotionProperties(r)
		if ok {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("brand", r.Brand).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("brand", r.Brand).
				Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("brand", r.Brand).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Brand summary publish completed")

	return stats, nil
}

// queryAllPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
