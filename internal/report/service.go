package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"restobill/internal/archive"
	"restobill/internal/cache"
	"restobill/internal/clock"
	"restobill/internal/domain"
	"restobill/internal/menu"
)

type Service struct {
	archiveDir string
	reportDir  string
	location   *time.Location
	catalog    *menu.Catalog
	catalogSum string
	windows    []domain.Window
	cache      cache.ReportCache
	cacheTTL   time.Duration
	clock      clock.Clock
	log        *zap.Logger
}

type Options struct {
	ArchiveDir string
	ReportDir  string
	Location   *time.Location
	Windows    []domain.Window
	Cache      cache.ReportCache
	CacheTTL   time.Duration
	Clock      clock.Clock
	Logger     *zap.Logger
}

func NewService(catalog *menu.Catalog, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.Windows) == 0 {
		opts.Windows = domain.DefaultWindows()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{Location: opts.Location}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		archiveDir: opts.ArchiveDir,
		reportDir:  opts.ReportDir,
		location:   opts.Location,
		catalog:    catalog,
		catalogSum: catalogFingerprint(catalog),
		windows:    opts.Windows,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
}

// Generate aggregates the archive as of now. Results are cached against the
// archive contents, so a new or rewritten bill file invalidates the entry.
func (s *Service) Generate(ctx context.Context) ([]domain.Report, error) {
	now := s.clock.Now()

	key, err := s.cacheKey(now)
	if err != nil {
		return nil, fmt.Errorf("fingerprint archive: %w", err)
	}

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("report cache get failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	reports := Aggregate(s.rows(), s.catalog, s.windows, now)

	if err := s.cache.Set(ctx, key, reports, s.cacheTTL); err != nil {
		s.log.Warn("report cache set failed", zap.Error(err))
	}
	return reports, nil
}

// Export generates the reports and writes them into the report folder.
func (s *Service) Export(ctx context.Context) (map[string]Files, error) {
	reports, err := s.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return Export(s.reportDir, reports)
}

// rows drops unreadable archive files after logging them.
func (s *Service) rows() iter.Seq[domain.ArchiveRow] {
	return func(yield func(domain.ArchiveRow) bool) {
		for row, err := range archive.Load(s.archiveDir, s.location) {
			if err != nil {
				s.log.Warn("skipping archive file", zap.Error(err))
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

// cacheKey covers the catalog, the window set, the minute of now, and every
// archive file's name, size and modification time. A cached report keeps the
// window starts of the run that filled it, so within one minute a hit can lag
// now by up to 59 seconds.
func (s *Service) cacheKey(now time.Time) (string, error) {
	files, err := archive.Files(s.archiveDir)
	if err != nil {
		return "", err
	}

	h := sha1.New()
	fmt.Fprintf(h, "catalog=%s\n", s.catalogSum)
	fmt.Fprintf(h, "now=%s\n", now.Truncate(time.Minute).Format(time.RFC3339))
	for _, w := range s.windows {
		fmt.Fprintf(h, "window=%s:%d\n", w.Name, int64(w.Duration))
	}
	for _, f := range files {
		fmt.Fprintf(h, "file=%s:%d:%d\n", f.Name(), f.Size(), f.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// catalogFingerprint hashes every field that feeds names and profit figures.
func catalogFingerprint(catalog *menu.Catalog) string {
	if catalog == nil {
		return ""
	}
	h := sha1.New()
	for _, item := range catalog.Items() {
		cost := "-"
		if item.Cost != nil {
			cost = item.Cost.String()
		}
		fmt.Fprintf(h, "%s|%s|%s|%s|%s\n", item.ID, item.Name, item.UnitPrice, item.GSTPercent, cost)
	}
	return hex.EncodeToString(h.Sum(nil))
}
