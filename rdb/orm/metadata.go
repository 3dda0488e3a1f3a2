package orm

// MetadataColumns 自动维护的元数据列名，表中不存在的列会被忽略
type MetadataColumns struct {
	InsertedOn string `cfg:"insertedOn" def:"inserted_on"`
	InsertedBy string `cfg:"insertedBy" def:"inserted_by"`
	InsertedIP string `cfg:"insertedIP" def:"inserted_ip"`
	UpdatedOn  string `cfg:"updatedOn" def:"updated_on"`
	UpdatedBy  string `cfg:"updatedBy" def:"updated_by"`
	UpdatedIP  string `cfg:"updatedIP" def:"updated_ip"`
	Deleted    string `cfg:"deleted" def:"deleted"`
}

func DefaultMetadataColumns() MetadataColumns {
	return MetadataColumns{
		InsertedOn: "inserted_on",
		InsertedBy: "inserted_by",
		InsertedIP: "inserted_ip",
		UpdatedOn:  "updated_on",
		UpdatedBy:  "updated_by",
		UpdatedIP:  "updated_ip",
		Deleted:    "deleted",
	}
}

func (m MetadataColumns) names() []string {
	return []string{m.InsertedOn, m.InsertedBy, m.InsertedIP, m.UpdatedOn, m.UpdatedBy, m.UpdatedIP, m.Deleted}
}

// withDefaults 未配置的列名使用默认值
func (m MetadataColumns) withDefaults() MetadataColumns {
	d := DefaultMetadataColumns()
	for _, p := range []struct{ v, d *string }{
		{&m.InsertedOn, &d.InsertedOn},
		{&m.InsertedBy, &d.InsertedBy},
		{&m.InsertedIP, &d.InsertedIP},
		{&m.UpdatedOn, &d.UpdatedOn},
		{&m.UpdatedBy, &d.UpdatedBy},
		{&m.UpdatedIP, &d.UpdatedIP},
		{&m.Deleted, &d.Deleted},
	} {
		if *p.v == "" {
			*p.v = *p.d
		}
	}
	return m
}
