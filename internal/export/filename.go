package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
)

const maxQuerySlug = 60

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename suggests scraping_job_<id>_<sanitized-query>.<ext>.
func Filename(id uuid.UUID, query string, format constants.ExportFormat) string {
	slug := strings.Trim(unsafeRun.ReplaceAllString(strings.TrimSpace(query), "_"), "_.")
	if len(slug) > maxQuerySlug {
		slug = strings.TrimRight(slug[:maxQuerySlug], "_.")
	}
	if slug == "" {
		return fmt.Sprintf("scraping_job_%s.%s", id, format.Ext())
	}
	return fmt.Sprintf("scraping_job_%s_%s.%s", id, slug, format.Ext())
}
