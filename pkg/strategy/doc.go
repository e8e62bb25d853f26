/*
Package strategy holds the five swappable algorithms the dispatch loop
picks between at setup: CPUAffineStrategy and GPUAffineStrategy (homogeneous
submission, gated on core or core+GPU capacity), HeterogeneousStrategy
(dynopro per-resource submission), and NonAdaptiveStrategy/AdaptiveStrategy
(future processing with or without inline backfill).

Every strategy talks to dispatch state only through StateAccessor, never
through a concrete *dispatch.Manager — pkg/dispatch implements StateAccessor
and passes itself in, so pkg/strategy has no import of pkg/dispatch at all.
*/
package strategy
