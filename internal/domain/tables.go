package domain

var Tables = []interface{}{
	// Tenancy
	&Tenant{},
	// Placement
	&Node{},
	// Instances
	&Instance{},
	&InstanceState{},
}
