package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
	"cropfit/internal/domain/thumbs"
	"cropfit/internal/services"
)

var errUsage = errors.New("invalid usage")

// env is what a command may touch
type env struct {
	container *services.Container
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"reconcile":   reconcileCommand,
	"unlink":      unlinkCommand,
	"relink":      relinkCommand,
	"inspect":     inspectCommand,
	"sizes":       sizesCommand,
	"flush-cache": flushCacheCommand,
	"health":      healthCommand,
}

func (e *env) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}

func (e *env) decode(v any) error {
	decoder := json.NewDecoder(e.stdin)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

func (e *env) encode(v any) error {
	encoder := json.NewEncoder(e.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func requireGroup(fs *pflag.FlagSet, group string) error {
	if group == "" {
		fmt.Fprintf(fs.Output(), "--group is required\n")
		return errUsage
	}
	return nil
}

func reconcileCommand(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("reconcile")
	group := fs.StringP("group", "g", "", "size group of the image")
	batch := fs.Bool("batch", false, "read a JSON array of requests")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireGroup(fs, *group); err != nil {
		return err
	}

	service := e.container.ThumbnailService()
	if *batch {
		var reqs []thumbs.Request
		if err := e.decode(&reqs); err != nil {
			return err
		}
		results, err := service.ReconcileBatch(ctx, *group, reqs)
		if err != nil {
			return err
		}
		return e.encode(results)
	}

	var req thumbs.Request
	if err := e.decode(&req); err != nil {
		return err
	}
	result, err := service.Reconcile(ctx, *group, req)
	if err != nil {
		return err
	}
	return e.encode(result)
}

// linkRequest reads a LinkRequest from stdin, letting flags override its fields
func (e *env) linkRequest(fs *pflag.FlagSet, args []string) (string, thumbs.LinkRequest, error) {
	group := fs.StringP("group", "g", "", "size group of the image")
	name := fs.StringP("name", "n", "", "thumb to change")
	if err := parse(fs, args); err != nil {
		return "", thumbs.LinkRequest{}, err
	}
	if err := requireGroup(fs, *group); err != nil {
		return "", thumbs.LinkRequest{}, err
	}

	var req thumbs.LinkRequest
	if err := e.decode(&req); err != nil {
		return "", thumbs.LinkRequest{}, err
	}
	if fs.Changed("name") {
		req.Name = *name
	}
	return *group, req, nil
}

func unlinkCommand(ctx context.Context, e *env, args []string) error {
	group, req, err := e.linkRequest(e.flagSet("unlink"), args)
	if err != nil {
		return err
	}
	thumb, err := e.container.ThumbnailService().Unlink(ctx, group, req)
	if err != nil {
		return err
	}
	return e.encode(thumb)
}

func relinkCommand(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("relink")
	reference := fs.StringP("reference", "r", "", "thumb to derive from (defaults to the parent size)")
	force := fs.Bool("force", false, "relink even when the stored box would move")
	group, req, err := e.linkRequest(fs, args)
	if err != nil {
		return err
	}
	if fs.Changed("reference") {
		req.Reference = *reference
	}
	if fs.Changed("force") {
		req.Force = *force
	}

	thumb, err := e.container.ThumbnailService().Relink(ctx, group, req)
	if err != nil {
		return err
	}
	return e.encode(thumb)
}

type inspection struct {
	File   string       `json:"file"`
	Bounds geometry.Box `json:"bounds,omitzero"`
	Error  string       `json:"error,omitempty"`
}

func inspectCommand(ctx context.Context, e *env, args []string) error {
	fs := e.flagSet("inspect")
	groups := fs.StringSliceP("group", "g", nil, "size groups the image must serve (default all)")
	if err := parse(fs, args); err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	var failed int
	out := make([]inspection, 0, len(files))
	for _, file := range files {
		bounds, err := e.validateFile(ctx, file, *groups)
		result := inspection{File: file, Bounds: bounds}
		if err != nil {
			result.Error = err.Error()
			failed++
		}
		out = append(out, result)
	}
	if err := e.encode(out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images rejected", failed, len(files))
	}
	return nil
}

func (e *env) validateFile(ctx context.Context, file string, groups []string) (geometry.Box, error) {
	if file == "-" {
		return e.container.ThumbnailService().ValidateUpload(ctx, e.stdin, groups...)
	}
	f, err := os.Open(file)
	if err != nil {
		return geometry.Box{}, err
	}
	defer f.Close()
	return e.container.ThumbnailService().ValidateUpload(ctx, f, groups...)
}

type sizeInfo struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Parent    string    `json:"parent,omitempty"`
	Width     int       `json:"w,omitempty"`
	Height    int       `json:"h,omitempty"`
	MinWidth  int       `json:"min_w"`
	MinHeight int       `json:"min_h"`
	Required  bool      `json:"required"`
	Retina    *sizeInfo `json:"retina,omitempty"`
}

type groupInfo struct {
	Name         string     `json:"name"`
	SingleCrop   bool       `json:"single_crop"`
	MinWidth     int        `json:"min_w"`
	MinHeight    int        `json:"min_h"`
	AspectRatios []float64  `json:"aspect_ratios"`
	Sizes        []sizeInfo `json:"sizes"`
}

func sizesCommand(_ context.Context, e *env, args []string) error {
	fs := e.flagSet("sizes")
	names := fs.StringSliceP("group", "g", nil, "groups to describe (default all)")
	if err := parse(fs, args); err != nil {
		return err
	}

	registry := e.container.Registry()
	if len(*names) == 0 {
		*names = registry.Names()
	}

	out := make([]groupInfo, 0, len(*names))
	for _, name := range *names {
		group, err := registry.Group(name)
		if err != nil {
			return err
		}
		minW, minH := group.MinRequiredDimensions()
		info := groupInfo{
			Name:         group.Name,
			SingleCrop:   group.SingleCrop,
			MinWidth:     minW,
			MinHeight:    minH,
			AspectRatios: sizes.AspectRatios(group.Sizes),
		}
		for _, top := range group.Sizes {
			info.Sizes = append(info.Sizes, describe(top, ""))
			for _, child := range top.Auto {
				info.Sizes = append(info.Sizes, describe(child, top.Name))
			}
		}
		out = append(out, info)
	}
	return e.encode(out)
}

// describe lists a size with its 2x companion, if it has one
func describe(size sizes.Size, parent string) sizeInfo {
	info := sizeInfo{
		Name:      size.Name,
		Label:     size.Label,
		Parent:    parent,
		Width:     size.Width,
		Height:    size.Height,
		MinWidth:  size.MinWidth,
		MinHeight: size.MinHeight,
		Required:  size.Required,
	}
	if retina, ok := size.RetinaVariant(); ok {
		variant := describe(retina, parent)
		info.Retina = &variant
	}
	return info
}

func flushCacheCommand(ctx context.Context, e *env, args []string) error {
	if err := parse(e.flagSet("flush-cache"), args); err != nil {
		return err
	}
	fitCache := e.container.FitCache()
	if fitCache == nil {
		return errors.New("fit cache is not enabled (set CACHE_ENABLED=true)")
	}
	deleted, err := fitCache.Invalidate(ctx)
	if err != nil {
		return err
	}
	return e.encode(map[string]int{"deleted": deleted})
}

func healthCommand(ctx context.Context, e *env, args []string) error {
	if err := parse(e.flagSet("health"), args); err != nil {
		return err
	}
	report := e.container.Health(ctx)
	if err := e.encode(report); err != nil {
		return err
	}
	if !report.Healthy() {
		return errors.New("dependencies unhealthy")
	}
	return nil
}
