package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/djdv/go-rescache"
	"github.com/djdv/go-rescache/asset"
	"github.com/djdv/go-rescache/freelist"
	"github.com/djdv/go-rescache/internal/config"
	"github.com/djdv/go-rescache/otelstats"
	"github.com/djdv/go-rescache/promstats"
	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// manifestExt marks files that are loaded as bundles.
const manifestExt = ".manifest"

type (
	// request is one acquisition made during a frame.
	// Requests are recycled through a free list.
	request struct {
		blobDescriptor   *rescache.Descriptor[*asset.Blob]
		bundleDescriptor *rescache.Descriptor[*asset.Bundle]
		blob             *asset.Blob
		bundle           *asset.Bundle
	}
	assetRef struct {
		name   string
		bundle bool
	}
	report struct {
		Frames   int
		Requests int
		Denied   int
		Failed   int
	}
	simulation struct {
		settings    config.SimulationConfig
		namespace   string
		log         *slog.Logger
		blobs       *rescache.MemoryCache[*asset.Blob]
		bundles     *rescache.Cache[*asset.Bundle]
		blobLoader  *asset.BlobLoader
		bundleLoad  *asset.BundleLoader
		blobDescs   map[string]*rescache.Descriptor[*asset.Blob]
		bundleDescs map[string]*rescache.Descriptor[*asset.Bundle]
		catalog     []assetRef
		transforms  []string
		requests    *freelist.List[*request]
		pending     []*request
		rng         *rand.Rand
		popularity  *rand.Zipf
		report      report
	}
)

func newSimulation(cfg *config.Config, fsys fs.FS, log *slog.Logger) (*simulation, error) {
	catalog, err := scanAssets(fsys)
	if err != nil {
		return nil, err
	}
	blobs, err := rescache.NewMemoryCache[*asset.Blob](
		cfg.Cache.Policy, int64(cfg.Cache.MemoryThreshold), nil,
		rescache.WithLogger(log.With("cache", "blobs")),
	)
	if err != nil {
		return nil, err
	}
	bundles, err := rescache.New[*asset.Bundle](
		cfg.Cache.BundlePolicy,
		rescache.WithLogger(log.With("cache", "bundles")),
	)
	if err != nil {
		return nil, err
	}
	var (
		blobLoader = asset.NewBlobLoader(fsys)
		settings   = cfg.Simulation
		rng        = rand.New(rand.NewPCG(uint64(settings.Seed), uint64(settings.Seed)))
		lastIndex  = uint64(len(catalog) - 1)
	)
	return &simulation{
		settings:    settings,
		namespace:   cfg.Metrics.Namespace,
		log:         log,
		blobs:       blobs,
		bundles:     bundles,
		blobLoader:  blobLoader,
		bundleLoad:  asset.NewBundleLoader(fsys, blobs.Cache, blobLoader),
		blobDescs:   make(map[string]*rescache.Descriptor[*asset.Blob]),
		bundleDescs: make(map[string]*rescache.Descriptor[*asset.Bundle]),
		catalog:     catalog,
		transforms:  blobLoader.Transforms(),
		requests: freelist.New(
			func() *request { return new(request) },
			freelist.WithCapacity[*request](settings.RequestsPerFrame),
			freelist.WithReset(func(r *request) { *r = request{} }),
		),
		pending:    make([]*request, 0, settings.RequestsPerFrame),
		rng:        rng,
		popularity: rand.NewZipf(rng, 1.2, 1, lastIndex),
	}, nil
}

// scanAssets lists every regular file in fsys.
// Files ending in [manifestExt] are bundles.
func scanAssets(fsys fs.FS) ([]assetRef, error) {
	var catalog []assetRef
	err := fs.WalkDir(fsys, ".", func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() ||
			strings.Contains(name, rescache.QualifierDelimiter) {
			return nil
		}
		catalog = append(catalog, assetRef{
			name:   name,
			bundle: path.Ext(name) == manifestExt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning assets: %w", err)
	}
	if len(catalog) == 0 {
		return nil, errors.New("no assets found")
	}
	return catalog, nil
}

func (s *simulation) registerPrometheus(registerer prometheus.Registerer) error {
	return errors.Join(
		registerer.Register(promstats.New(s.namespace, "blobs", s.blobs)),
		registerer.Register(promstats.New(s.namespace, "bundles", s.bundles)),
	)
}

// registerOTel attaches the cache instruments to a manually read meter provider.
// The returned function collects once and logs every data point.
func (s *simulation) registerOTel() (func(context.Context) error, error) {
	var (
		reader   = sdkmetric.NewManualReader()
		provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		meter    = provider.Meter(otelstats.InstrumentationName)
	)
	if _, err := otelstats.Register(meter, "blobs", s.blobs); err != nil {
		return nil, err
	}
	if _, err := otelstats.Register(meter, "bundles", s.bundles); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			return err
		}
		for _, scope := range rm.ScopeMetrics {
			for _, m := range scope.Metrics {
				s.logDataPoints(m)
			}
		}
		return provider.Shutdown(ctx)
	}, nil
}

func (s *simulation) logDataPoints(m metricdata.Metrics) {
	var points []metricdata.DataPoint[int64]
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		points = data.DataPoints
	case metricdata.Gauge[int64]:
		points = data.DataPoints
	}
	for _, point := range points {
		domain, _ := point.Attributes.Value("domain")
		s.log.Info("instrument", "name", m.Name, "domain", domain.AsString(), "value", point.Value)
	}
}

func (s *simulation) run(ctx context.Context) error {
	for frame := range s.settings.Frames {
		if err := ctx.Err(); err != nil {
			s.log.Warn("simulation interrupted", "frame", frame)
			return err
		}
		if err := s.frame(); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		s.report.Frames++
	}
	bundles := s.bundles.FreeAll()
	blobs := s.blobs.FreeAll()
	s.log.Info("simulation finished",
		"frames", s.report.Frames,
		"requests", s.report.Requests,
		"freed_bundles", bundles,
		"freed_blobs", blobs,
	)
	return nil
}

// frame acquires a batch of assets and releases all of them.
func (s *simulation) frame() error {
	for range s.settings.RequestsPerFrame {
		var (
			req            = s.requests.Get()
			ref, transform = s.pick()
		)
		s.report.Requests++
		if err := s.acquire(req, ref, transform); err != nil {
			s.requests.Put(req)
			if errors.Is(err, rescache.ErrAdmissionDenied) {
				s.report.Denied++
				s.log.Debug("request denied", "error", err)
				continue
			}
			s.report.Failed++
			s.log.Warn("request failed", "error", err)
			continue
		}
		s.pending = append(s.pending, req)
	}
	var errs []error
	for _, req := range s.pending {
		errs = append(errs, s.release(req))
		s.requests.Put(req)
	}
	clear(s.pending)
	s.pending = s.pending[:0]
	return errors.Join(errs...)
}

func (s *simulation) pick() (assetRef, string) {
	var (
		ref       = s.catalog[s.popularity.Uint64()]
		transform = s.transforms[s.rng.IntN(len(s.transforms))]
	)
	return ref, transform
}

func (s *simulation) acquire(req *request, ref assetRef, transform string) (err error) {
	if ref.bundle {
		if req.bundleDescriptor, err = s.bundleDescriptor(ref.name, transform); err != nil {
			return err
		}
		req.bundle, err = req.bundleDescriptor.GetHandle(s.bundles)
		return err
	}
	if req.blobDescriptor, err = s.blobDescriptor(ref.name, transform); err != nil {
		return err
	}
	req.blob, err = req.blobDescriptor.GetHandle(s.blobs.Cache)
	return err
}

func (s *simulation) release(req *request) error {
	if req.bundle != nil {
		return req.bundleDescriptor.ReleaseHandle(req.bundle)
	}
	return req.blobDescriptor.ReleaseHandle(req.blob)
}

func (s *simulation) blobDescriptor(name, transform string) (*rescache.Descriptor[*asset.Blob], error) {
	key := name + rescache.QualifierDelimiter + transform
	if d, ok := s.blobDescs[key]; ok {
		return d, nil
	}
	d, err := s.blobLoader.Descriptor(name, transform)
	if err != nil {
		return nil, err
	}
	s.blobDescs[key] = d
	return d, nil
}

func (s *simulation) bundleDescriptor(name, transform string) (*rescache.Descriptor[*asset.Bundle], error) {
	key := name + rescache.QualifierDelimiter + transform
	if d, ok := s.bundleDescs[key]; ok {
		return d, nil
	}
	d, err := s.bundleLoad.Descriptor(name, transform)
	if err != nil {
		return nil, err
	}
	s.bundleDescs[key] = d
	return d, nil
}

func (s *simulation) writeSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "frames\trequests\tdenied\tfailed\t\n")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t\n",
		s.report.Frames, s.report.Requests, s.report.Denied, s.report.Failed)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "cache\titems\thandles\thits\tmisses\tcreated\tfailed\tdropped\tvetoed\tdenied\t\n")
	for _, row := range []struct {
		name  string
		stats rescache.Stats
	}{
		{"blobs", s.blobs.Stats()},
		{"bundles", s.bundles.Stats()},
	} {
		st := row.stats
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
			row.name, st.Items, st.Handles, st.Hits, st.Misses,
			st.Created, st.CreateFailures, st.Dropped, st.Vetoed, st.AdmissionDenied)
	}
	return tw.Flush()
}
