// Package terminology provides an in-memory value set membership
// provider backing the FHIRPath memberOf() function.
//
// Example usage:
//
//	vs := terminology.NewInMemoryProvider()
//	vs.AddValueSet("http://hl7.org/fhir/ValueSet/administrative-gender",
//	    "http://hl7.org/fhir/administrative-gender",
//	    "male", "female", "other", "unknown")
//
//	eng := fhirpath.New(fhirpath.WithMemberOf(vs.Contains))
//	out, err := eng.Evaluate("Patient.gender.memberOf('http://hl7.org/fhir/ValueSet/administrative-gender')", resource)
package terminology
