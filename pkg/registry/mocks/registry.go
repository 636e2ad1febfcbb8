package mocks

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/lifecycle"
)

type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

type Registry struct {
	Impl struct {
		Register      func(ctx context.Context, modelName string, artifactRef string, meta map[string]string) (lifecycle.ModelVersion, error)
		GetVersion    func(ctx context.Context, modelName string, version int) (lifecycle.ModelVersion, error)
		Versions      func(ctx context.Context, modelName string) ([]lifecycle.ModelVersion, error)
		SetAlias      func(ctx context.Context, modelName string, alias string, version int) (*int, error)
		GetAlias      func(ctx context.Context, modelName string, alias string) (*int, error)
		AttachMetrics func(ctx context.Context, record lifecycle.MetricsRecord) (lifecycle.MetricsRecord, error)
		LatestMetrics func(ctx context.Context, modelName string, version int) (lifecycle.MetricsRecord, error)
	}

	Calls struct {
		Register CallLog[struct {
			ModelName   string
			ArtifactRef string
			Meta        map[string]string
		}]
		GetVersion CallLog[struct {
			ModelName string
			Version   int
		}]
		Versions CallLog[string]
		SetAlias CallLog[struct {
			ModelName string
			Alias     string
			Version   int
		}]
		GetAlias CallLog[struct {
			ModelName string
			Alias     string
		}]
		AttachMetrics CallLog[lifecycle.MetricsRecord]
		LatestMetrics CallLog[struct {
			ModelName string
			Version   int
		}]
	}
}

func NewRegistry() *Registry {
	return &Registry{}
}

var _ lifecycle.Registry = &Registry{}

func (m *Registry) Register(ctx context.Context, modelName string, artifactRef string, meta map[string]string) (lifecycle.ModelVersion, error) {
	m.Calls.Register = append(m.Calls.Register, struct {
		ModelName   string
		ArtifactRef string
		Meta        map[string]string
	}{ModelName: modelName, ArtifactRef: artifactRef, Meta: meta})
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, modelName, artifactRef, meta)
	}
	panic(errors.New("it should not be called"))
}

func (m *Registry) GetVersion(ctx context.Context, modelName string, version int) (lifecycle.ModelVersion, error) {
	m.Calls.GetVersion = append(m.Calls.GetVersion, struct {
		ModelName string
		Version   int
	}{ModelName: modelName, Version: version})
	if m.Impl.GetVersion != nil {
		return m.Impl.GetVersion(ctx, modelName, version)
	}
	panic(errors.New("it should not be called"))
}

func (m *Registry) Versions(ctx context.Context, modelName string) ([]lifecycle.ModelVersion, error) {
	m.Calls.Versions = append(m.Calls.Versions, modelName)
	if m.Impl.Versions != nil {
		return m.Impl.Versions(ctx, modelName)
	}
	panic(errors.New("it should not be called"))
}

func (m *Registry) SetAlias(ctx context.Context, modelName string, alias string, version int) (*int, error) {
	m.Calls.SetAlias = append(m.Calls.SetAlias, struct {
		ModelName string
		Alias     string
		Version   int
	}{ModelName: modelName, Alias: alias, Version: version})
	if m.Impl.SetAlias != nil {
		return m.Impl.SetAlias(ctx, modelName, alias, version)
	}
	panic(errors.New("it should not be called"))
}

func (m *Registry) GetAlias(ctx context.Context, modelName string, alias string) (*int, error) {
	m.Calls.GetAlias = append(m.Calls.GetAlias, struct {
		ModelName string
		Alias     string
	}{ModelName: modelName, Alias: alias})
	if m.Impl.GetAlias != nil {
		return m.Impl.GetAlias(ctx, modelName, alias)
	}
	panic(errors.New("it should not be called"))
}

func (m *Registry) AttachMetrics(ctx context.Context, record lifecycle.MetricsRecord) (lifecycle.MetricsRecord, error) {
	m.Calls.AttachMetrics = append(m.Calls.AttachMetrics, record)
	if m.Impl.AttachMetrics != nil {
		return m.Impl.AttachMetrics(ctx, record)
	}
	panic(errors.New("it should not be called"))
}

func (m *Registry) LatestMetrics(ctx context.Context, modelName string, version int) (lifecycle.MetricsRecord, error) {
	m.Calls.LatestMetrics = append(m.Calls.LatestMetrics, struct {
		ModelName string
		Version   int
	}{ModelName: modelName, Version: version})
	if m.Impl.LatestMetrics != nil {
		return m.Impl.LatestMetrics(ctx, modelName, version)
	}
	panic(errors.New("it should not be called"))
}
