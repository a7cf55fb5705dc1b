// Package domain models strong-motion accelerograph recordings after they have
// been decoded from a recorder's native file dialect.
//
// # Data Source
//
// Recordings come from national strong-motion networks (COSMOS members, GeoNet,
// the Taiwan CWB, CSMIP/DMG, NIED K-NET/KiK-net and USGS SMC archives). Each
// network writes its own fixed-width text layout; the dialect package turns those
// layouts into the [ChannelRecord] values defined here.
//
// # Conventions
//
// Identity:
//
//	NET.STA.LOC.CHA, e.g. "CE.23837.--.HHN".
//	Location is "--" when the file carries none. Network is "UNK" when it cannot
//	be established from the file or a controlled vocabulary.
//
// Channel codes:
//
//	Only HHN, HHE and HHZ are produced. Horizontal sensors are bucketed by azimuth:
//
//	  a > 315 or a < 45 or 135 < a < 225  -> HHN
//	  otherwise                           -> HHE
//
//	Each dialect adds its own vertical rule (see [OrientationBuckets]).
//
// Timing:
//
//	Start times are UTC with microsecond resolution. Dialects that record local
//	time (CWB at UTC+8, K-NET at UTC+9) are shifted on decode. Exactly one of
//	sample rate and sample interval is read from a file; [Sampling] derives the other.
//
// Units:
//
//	acc = cm/s², vel = cm/s, disp = cm. Dialects storing gal or mm/s² are scaled on decode.
//
// # Errors and warnings
//
// Fatal conditions are sentinel errors wrapped in [DecodeError], which names the
// file and, when known, the line and header block. Recoverable conditions become
// [Warning] values returned alongside the data.
package domain
