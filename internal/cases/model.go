package cases

// Model names one entity type. The value doubles as the URL segment and the
// permission codename suffix ("change_letter").
type Model string

const (
	ModelCase        Model = "case"
	ModelLetter      Model = "letter"
	ModelInstitution Model = "institution"
	ModelTag         Model = "tag"
	ModelPerson      Model = "person"
	ModelChannel     Model = "channel"
	ModelDictionary  Model = "dictionary"
)

// AppLabel groups every model in the admin index and URLs.
const AppLabel = "cases"

// Models lists every entity type in registration order.
func Models() []Model {
	return []Model{
		ModelPerson,
		ModelDictionary,
		ModelTag,
		ModelChannel,
		ModelCase,
		ModelInstitution,
		ModelLetter,
	}
}

// Valid reports whether m is a known model.
func (m Model) Valid() bool {
	for _, known := range Models() {
		if m == known {
			return true
		}
	}
	return false
}
