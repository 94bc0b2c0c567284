// Package staging owns the on-disk lifecycle of conversion inputs and
// outputs.
//
// Every conversion gets its own meshport-{uuid} workspace under the staging
// root, so concurrent conversions never share staged files or the auxiliary
// data directory. Cleanup is best effort and reports failures instead of
// returning them; CleanStale sweeps workspaces abandoned by crashed runs.
package staging
