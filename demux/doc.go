// Package demux is the pure-Go playback backend for MPEG-TS files. It
// implements [codec.Backend] on top of the internal transport stream reader
// and provides parse-level decoders for H.264, H.265 and AAC: video frames
// carry the access unit in Annex B form with dimensions taken from the active
// SPS, audio frames carry one raw AAC block each. CEA-608 captions found in
// H.264 SEI messages are attached to the video frame they arrive with.
//
// Codec parsing is exposed through [ParseAnnexB], [ParseSPS], [ParseADTS]
// and their HEVC counterparts.
package demux
