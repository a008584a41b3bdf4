package models

type AccessRights string

const (
	ReadOnly  AccessRights = "ReadOnly"
	ReadWrite AccessRights = "ReadWrite"
	WriteOnly AccessRights = "WriteOnly"
)

type ConfigurationEntry struct {
	Key            string       `json:"key" bson:"key" yaml:"key"`
	Value          string       `json:"value" bson:"value" yaml:"value"`
	AccessRights   AccessRights `json:"access_rights" bson:"access_rights" yaml:"access_rights"`
	RebootRequired bool         `json:"reboot_required" bson:"reboot_required" yaml:"reboot_required"`
}

func (c *ConfigurationEntry) DataType() string {
	return "configuration"
}

func (c *ConfigurationEntry) IsReadable() bool {
	return c.AccessRights != WriteOnly
}

func (c *ConfigurationEntry) IsWritable() bool {
	return c.AccessRights != ReadOnly
}
