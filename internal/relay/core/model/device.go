package model

// Device identifies the telematics unit that produced a record.
type Device struct {
	// ID is the feed-assigned identifier, used to resolve metadata.
	ID string

	// SerialNumber is the hardware serial of the unit.
	SerialNumber string

	// Vehicle is nil when the unit is not installed in a known vehicle.
	Vehicle *Vehicle
}

// Vehicle is the optional metadata of the vehicle a device is installed in.
type Vehicle struct {
	Name         string
	VIN          string
	LicensePlate string
	LicenseState string
}

// Name returns the vehicle name or an empty string.
func (d Device) Name() string {
	if d.Vehicle == nil {
		return ""
	}
	return d.Vehicle.Name
}

// VIN returns the vehicle identification number or an empty string.
func (d Device) VIN() string {
	if d.Vehicle == nil {
		return ""
	}
	return d.Vehicle.VIN
}

// LicensePlate returns the plate or an empty string.
func (d Device) LicensePlate() string {
	if d.Vehicle == nil {
		return ""
	}
	return d.Vehicle.LicensePlate
}

// LicenseState returns the plate's issuing state or an empty string.
func (d Device) LicenseState() string {
	if d.Vehicle == nil {
		return ""
	}
	return d.Vehicle.LicenseState
}
