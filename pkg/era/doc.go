// Package era resolves epoch-staged values.
//
// Chain data such as pool stake and commission changes at epoch boundaries.
// Sources report it as a Value: the effective value as of some era, and the
// value that takes effect from the next era on. Resolve turns that record,
// together with the current era index, into a Current pair ready for
// display:
//
//	v, _ := client.Validator(ctx, id)
//	cur := era.Resolve(v.Stake, provider)
//	fmt.Println(era.DisplayString(cur, era.FormatADA))
//
// Once the current era has moved past the recorded one, the staged change
// has already happened and both sides of the pair settle on the new value.
// DisplayString always annotates a present After; Collapse first to show
// only pending changes.
//
// The era index itself lives in a Provider, fed by a chain poller or an
// indexer feed. Resolution only reads it through IndexReader, once per call.
package era
