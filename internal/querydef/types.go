// Package querydef loads named query definitions from CUE or YAML and
// builds them into compilable pipelines.
//
// A definition file names a root collection, optional field types and
// extra AQL functions, and a list of queries written in the lambda text
// notation:
//
//	collection: Project
//	fields:
//	  Name: string
//	queries:
//	  - name: by-name
//	    pipeline: Root.Where(x => x.Name == $name).Select(x => x.Name)
//	    params:
//	      - {name: name, type: string, value: A}
package querydef

// File is a parsed definition file.
type File struct {
	Collection string            `json:"collection" yaml:"collection" validate:"required,aqlcollection"`
	Fields     map[string]string `json:"fields,omitempty" yaml:"fields" validate:"dive,keys,aqlident,endkeys,aqltype"`
	Functions  map[string]string `json:"functions,omitempty" yaml:"functions" validate:"dive,keys,required,endkeys,required"`
	Queries    []Definition      `json:"queries" yaml:"queries" validate:"required,min=1,unique=Name,dive"`

	// Path is the file or directory the definitions were loaded from.
	Path string `json:"-" yaml:"-"`
}

// Definition is one named query.
type Definition struct {
	Name        string  `json:"name" yaml:"name" validate:"required,max=128"`
	Description string  `json:"description,omitempty" yaml:"description"`
	Collection  string  `json:"collection,omitempty" yaml:"collection" validate:"omitempty,aqlcollection"`
	Pipeline    string  `json:"pipeline" yaml:"pipeline" validate:"required"`
	Params      []Param `json:"params,omitempty" yaml:"params" validate:"unique=Name,dive"`
}

// Param declares a named bind value used as $name in a pipeline.
type Param struct {
	Name  string `json:"name" yaml:"name" validate:"required,aqlident"`
	Type  string `json:"type,omitempty" yaml:"type" validate:"omitempty,aqltype"`
	Value any    `json:"value,omitempty" yaml:"value"`
}

// Query returns the definition named name.
func (f *File) Query(name string) (*Definition, bool) {
	for i := range f.Queries {
		if f.Queries[i].Name == name {
			return &f.Queries[i], true
		}
	}
	return nil, false
}

// Names returns the query names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Queries))
	for i, q := range f.Queries {
		names[i] = q.Name
	}
	return names
}
