package bundlegate

// signalSuffix is appended to a bundle name to form its readiness signal name.
const signalSuffix = "IsReady"

// SignalName returns the readiness signal name for a bundle.
// Code coordinating with a registry out of band must use this convention.
func SignalName(name string) string {
	return name + signalSuffix
}

// Dependency is the optional single dependency of a Manage call.
// The zero value means no dependency.
type Dependency struct {
	name string
	set  bool
}

// NoDependency runs the callback without waiting for anything.
var NoDependency = Dependency{}

// After makes a Manage call wait for the named bundle.
func After(name string) Dependency {
	return Dependency{name: name, set: true}
}

// Name returns the dependency name and whether one is set.
func (d Dependency) Name() (string, bool) {
	return d.name, d.set
}

func (d Dependency) String() string {
	if !d.set {
		return "<none>"
	}
	return d.name
}

// Bundle names what a Manage call initializes.
// The zero value is a leaf consumer that never announces readiness.
type Bundle struct {
	name string
	set  bool
}

// Leaf marks a Manage call as a consumer nothing else can depend on.
var Leaf = Bundle{}

// As makes a Manage call announce the named bundle once its callback returns.
func As(name string) Bundle {
	return Bundle{name: name, set: true}
}

// Name returns the bundle name and whether one is set.
func (b Bundle) Name() (string, bool) {
	return b.name, b.set
}

func (b Bundle) String() string {
	if !b.set {
		return "<leaf>"
	}
	return b.name
}
