package fhirpath

// Version is the library release version.
const Version = "0.3.0"

// SpecVersion is the FHIRPath specification release this engine
// implements (Normative Release 1).
const SpecVersion = "2.0.0"
