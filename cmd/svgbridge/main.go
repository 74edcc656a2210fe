// Command svgbridge is a headless host for the bridge: it loads a
// document, then reads port messages from stdin, one JSON envelope
// per line, for instance
//
//	{"port": "downloadSvgAsPng", "payload": {"elementId": "chart", "filename": "chart", "size": {"x": 200, "y": 100}}}
//
// Downloads are written to the configured directory.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/benoitkugler/svgbridge/blob"
	"github.com/benoitkugler/svgbridge/bridge"
	"github.com/benoitkugler/svgbridge/config"
	"github.com/benoitkugler/svgbridge/download"
	"github.com/benoitkugler/svgbridge/export"
	"github.com/benoitkugler/svgbridge/raster"
	"github.com/benoitkugler/svgbridge/svgdom"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to the YAML configuration (optional)")
		docFile    = flag.String("doc", "", "Path to the SVG or XHTML document providing the elements")
		outDir     = flag.String("out", "", "Download directory (overrides download.dir)")
		verbose    = flag.Bool("v", false, "Log at debug level")
	)
	flag.Parse()

	if *docFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: svgbridge -doc <document.svg> [-config bridge.yaml] [-out dir] [-v] < messages.jsonl")
		os.Exit(1)
	}

	if err := run(*configFile, *docFile, *outDir, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, docFile, outDir string, verbose bool) error {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if outDir != "" {
		cfg.Download.Dir = outDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	doc, err := svgdom.ParseFile(docFile)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	blobs := blob.NewRegistry(cfg.Blob.Origin)
	pipeline := export.NewPipeline(export.Host{
		Serializer: svgdom.XMLSerializer{},
		Blobs:      blobs,
		Decoder:    cfg.NewDecoder(blobs),
		Canvases:   raster.Canvases{},
		Downloader: download.NewDirSink(cfg.Download.Dir, log),
	}, log)
	pipeline.MaxPixels = cfg.Raster.MaxPixels
	b := bridge.New(doc, pipeline, log)

	log.Debug("bridge ready", zap.String("document", docFile), zap.Strings("ports", bridge.Ports()))
	n, err := b.Serve(os.Stdin)
	if err != nil {
		return err
	}
	stats := blobs.Stats()
	log.Info("done",
		zap.Int("messages", n),
		zap.Int("blobs_allocated", stats.Allocated),
		zap.Int("blobs_revoked", stats.Revoked))
	return nil
}
