package containment

// Spring is a scalar damped spring attached to one contact.
type Spring struct {
	RestLength float64
	K          float64 // stiffness
	C          float64 // damping
	// Deformation is RestLength - length from the last ComputeForce call.
	Deformation float64
}

// NewSpring returns a spring at rest.
func NewSpring(k, c, restLength float64) Spring {
	return Spring{RestLength: restLength, K: k, C: c}
}

// ComputeForce returns K*(RestLength-currentLength) - C*speed, where speed is
// the velocity component along the spring axis.
func (s *Spring) ComputeForce(currentLength, speed float64) float64 {
	s.Deformation = s.RestLength - currentLength
	return s.K*s.Deformation - s.C*speed
}
