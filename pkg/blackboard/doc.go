// Package blackboard provides the typed data contract of the park planning pipeline.
//
// # Overview
//
// The blackboard is the shared, append-only state of one planning run. Stages read the
// results that earlier stages published and publish exactly one result of their own.
// Nothing on the blackboard is ever edited in place: State is copy-on-write and every
// With* method returns a new value.
//
// # Core Concepts
//
// StageResult is the envelope a stage publishes: named metrics and labels, one typed
// artifact (a tagged variant per stage), the data gaps the stage found, and a
// reproducibility stamp naming the component and input data version.
//
// DataGap records missing or low-confidence input. Gaps never stop a run and are
// aggregated verbatim into the final output.
//
// ReviewItem is a checkpoint that a human must confirm. Items are appended by any
// stage and never removed.
//
// # Usage Example
//
//	state := blackboard.NewState(runID, selection, scenario)
//
//	result := blackboard.StageResult{
//		ID:    uuid.New().String(),
//		Stage: blackboard.StageGeo,
//		Artifacts: blackboard.Artifacts{Geo: &blackboard.GeoArtifact{AreaKm2: 15.3}},
//		Reproducibility: blackboard.Reproducibility{Component: "geo_resolver"},
//	}
//
//	state, err := state.WithResult(result)
//	if err != nil {
//		log.Fatal(err) // stage already published, or result invalid
//	}
//
// # Run Events
//
// Progress events can be fanned out over Redis Pub/Sub with Client.
//
// Instance channel: parkplan:{instance_name}:run_events
// Run channel: parkplan:{instance_name}:run:{run_id}:events
package blackboard
