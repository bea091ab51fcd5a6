//go:build !linux
// +build !linux

package procfs

import (
	"context"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/types"
)

// Provider is a placeholder on non-Linux platforms.
type Provider struct{}

// New returns collector.ErrUnsupported because /proc is Linux specific.
func New(mountPoint string) (*Provider, error) {
	return nil, collector.ErrUnsupported
}

// PIDs always fails on unsupported platforms.
func (p *Provider) PIDs(ctx context.Context) ([]int32, error) {
	return nil, collector.ErrUnsupported
}

// FetchProcess always fails on unsupported platforms.
func (p *Provider) FetchProcess(ctx context.Context, pid int32) (types.RawSample, error) {
	return types.RawSample{}, collector.ErrUnsupported
}

// FetchSystem always fails on unsupported platforms.
func (p *Provider) FetchSystem(ctx context.Context) (types.SystemSample, error) {
	return types.SystemSample{}, collector.ErrUnsupported
}
