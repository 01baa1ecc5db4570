// Package geo answers "which providers can serve this point" queries.
//
// The Index owns a read-mostly projection of provider locations organised in
// a coarse grid, so frequent relocation updates stay cheap and covering
// queries avoid a full scan. Distances use the haversine formula with the
// same Earth radius as the clients; a point exactly at radius distance is
// inside, consistently, on every code path.
package geo
