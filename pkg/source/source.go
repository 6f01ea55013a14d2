// Package source defines the data-source collaborator of a layer.
//
// A Source answers metadata requests for a viz and, on data requests, builds
// dataframes and hands them to the layer it is bound to through the added and
// removed callbacks. The loaded callback fires once every dataframe of a
// request has been delivered.
package source

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/sandrolain/goviz/pkg/dataframe"
	"github.com/sandrolain/goviz/pkg/types"
	"github.com/sandrolain/goviz/pkg/viz"
)

// Source provides metadata and dataframes.
type Source interface {
	// RequestMetadata returns the metadata v is compiled against.
	RequestMetadata(ctx context.Context, v *viz.Viz) (*types.Metadata, error)
	// RequestData loads the data intersecting viewport, replacing the
	// dataframes of the previous request.
	RequestData(ctx context.Context, viewport orb.Bound) error
	// BindLayer installs the layer callbacks. A later call replaces them.
	BindLayer(added, removed func(*dataframe.Dataframe), loaded func())
	// Free removes and frees every dataframe.
	Free()
}
