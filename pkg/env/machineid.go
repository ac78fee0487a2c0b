package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// DefaultMachineID is used when the machine ID is not available.
const DefaultMachineID = "framelink"

// MachineID retrieves an ID identifying the machine, hashed with the
// application name.
func MachineID() string {
	id, err := machineid.ProtectedID("framelink")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return DefaultMachineID
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
