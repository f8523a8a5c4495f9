package intent

// Category maps a closed category key to the keywords that select it and to the
// open catalog category strings it accepts.
type Category struct {
	Key          string
	Keywords     []string
	CatalogNames []string
}

// categories is matched in order; the first entry with a keyword in the text wins.
// Festivals stay last so "festival de cine" resolves to cine.
var categories = []Category{
	{
		Key:          "humor",
		Keywords:     []string{"stand up", "standup", "stand-up", "humor", "comico", "comicos", "impro", "improvisacion"},
		CatalogNames: []string{"humor", "stand up", "comedia"},
	},
	{
		Key:          "teatro",
		Keywords:     []string{"teatro", "obra", "obras", "obra de teatro", "microteatro", "comedia", "drama", "dramaturgia", "monologo"},
		CatalogNames: []string{"teatro", "artes escenicas", "microteatro"},
	},
	{
		Key: "musica",
		Keywords: []string{"concierto", "conciertos", "musica", "banda", "bandas", "rock", "jazz", "salsa", "cumbia",
			"criolla", "criollo", "orquesta", "sinfonica", "opera", "recital", "dj", "electronica", "pena", "en vivo"},
		CatalogNames: []string{"musica", "concierto", "conciertos", "opera"},
	},
	{
		Key:          "danza",
		Keywords:     []string{"danza", "ballet", "baile", "bailes", "marinera", "tango", "flamenco", "folklore", "folclore"},
		CatalogNames: []string{"danza", "ballet", "baile"},
	},
	{
		Key:          "cine",
		Keywords:     []string{"cine", "pelicula", "peliculas", "documental", "documentales", "cortometraje", "cortometrajes", "funcion de cine"},
		CatalogNames: []string{"cine", "audiovisual"},
	},
	{
		Key: "exposiciones",
		Keywords: []string{"exposicion", "exposiciones", "muestra", "galeria", "galerias", "museo", "museos", "arte",
			"pintura", "escultura", "fotografia", "instalacion"},
		CatalogNames: []string{"exposicion", "exposiciones", "arte", "artes visuales", "museo"},
	},
	{
		Key:          "literatura",
		Keywords:     []string{"libro", "libros", "literatura", "poesia", "lectura", "presentacion de libro", "escritor", "escritores"},
		CatalogNames: []string{"literatura", "libros", "poesia"},
	},
	{
		Key:          "talleres",
		Keywords:     []string{"taller", "talleres", "curso", "cursos", "workshop", "clase", "clases", "conversatorio", "charla", "charlas"},
		CatalogNames: []string{"taller", "talleres", "educacion", "conversatorio"},
	},
	{
		Key:          "gastronomia",
		Keywords:     []string{"gastronomia", "gastronomico", "comida", "cocina", "degustacion", "cata", "cerveza", "vino", "pisco"},
		CatalogNames: []string{"gastronomia", "comida"},
	},
	{
		Key:          "infantil",
		Keywords:     []string{"infantil", "infantiles", "ninos", "nino", "ninas", "familia", "familiar", "familiares", "titeres"},
		CatalogNames: []string{"infantil", "familiar", "ninos"},
	},
	{
		Key:          "ferias",
		Keywords:     []string{"feria", "ferias", "mercado", "mercadillo", "bazar"},
		CatalogNames: []string{"feria", "ferias"},
	},
	{
		Key:          "festivales",
		Keywords:     []string{"festival", "festivales", "fest", "carnaval"},
		CatalogNames: []string{"festival", "festivales"},
	},
}

// LookupCategory returns the category table entry for key.
func LookupCategory(key string) (Category, bool) {
	for _, c := range categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// District is a gazetteer entry: the canonical display name and its folded variants.
type District struct {
	Name     string
	Variants []string
}

// districts covers Lima Metropolitana and Callao. The bare word "lima" is not a
// variant since it names the whole city.
var districts = []District{
	{Name: "Miraflores", Variants: []string{"miraflores"}},
	{Name: "Barranco", Variants: []string{"barranco"}},
	{Name: "San Isidro", Variants: []string{"san isidro"}},
	{Name: "Santiago de Surco", Variants: []string{"santiago de surco", "surco"}},
	{Name: "Cercado de Lima", Variants: []string{"cercado de lima", "centro de lima", "lima centro", "centro historico", "cercado"}},
	{Name: "San Borja", Variants: []string{"san borja"}},
	{Name: "La Molina", Variants: []string{"la molina"}},
	{Name: "Jesús María", Variants: []string{"jesus maria"}},
	{Name: "Lince", Variants: []string{"lince"}},
	{Name: "Magdalena del Mar", Variants: []string{"magdalena del mar", "magdalena"}},
	{Name: "Pueblo Libre", Variants: []string{"pueblo libre"}},
	{Name: "San Miguel", Variants: []string{"san miguel"}},
	{Name: "Chorrillos", Variants: []string{"chorrillos"}},
	{Name: "Surquillo", Variants: []string{"surquillo"}},
	{Name: "Breña", Variants: []string{"brena"}},
	{Name: "Rímac", Variants: []string{"rimac"}},
	{Name: "La Victoria", Variants: []string{"la victoria"}},
	{Name: "Los Olivos", Variants: []string{"los olivos"}},
	{Name: "San Juan de Lurigancho", Variants: []string{"san juan de lurigancho", "sjl"}},
	{Name: "San Juan de Miraflores", Variants: []string{"san juan de miraflores", "sjm"}},
	{Name: "San Martín de Porres", Variants: []string{"san martin de porres", "smp"}},
	{Name: "Villa El Salvador", Variants: []string{"villa el salvador"}},
	{Name: "Independencia", Variants: []string{"independencia"}},
	{Name: "Comas", Variants: []string{"comas"}},
	{Name: "Ate", Variants: []string{"ate vitarte", "ate"}},
	{Name: "Chaclacayo", Variants: []string{"chaclacayo"}},
	{Name: "Lurigancho-Chosica", Variants: []string{"chosica"}},
	{Name: "Pachacámac", Variants: []string{"pachacamac"}},
	{Name: "Lurín", Variants: []string{"lurin"}},
	{Name: "Punta Hermosa", Variants: []string{"punta hermosa"}},
	{Name: "Callao", Variants: []string{"callao"}},
	{Name: "La Punta", Variants: []string{"la punta"}},
}

// freeKeywords set the free-only flag.
var freeKeywords = []string{
	"gratis", "gratuito", "gratuita", "gratuitos", "gratuitas",
	"ingreso libre", "entrada libre", "sin costo", "free",
}

// cheapKeywords set CheapCeiling as the price ceiling.
var cheapKeywords = []string{
	"barato", "barata", "baratos", "baratas",
	"economico", "economica", "economicos", "economicas", "low cost",
}

// CheapCeiling is the price ceiling, in soles, implied by "cheap" phrasing.
const CheapCeiling = 30.0

var monthNames = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// holiday is a fixed multi-day window starting on month/day.
type holiday struct {
	keywords []string
	month    int
	day      int
	days     int
}

var holidays = []holiday{
	{keywords: []string{"fiestas patrias"}, month: 7, day: 27, days: 3},
	{keywords: []string{"navidad", "noche buena", "nochebuena"}, month: 12, day: 24, days: 3},
	{keywords: []string{"ano nuevo", "fin de ano"}, month: 12, day: 31, days: 2},
	{keywords: []string{"san valentin", "dia de los enamorados"}, month: 2, day: 13, days: 3},
	{keywords: []string{"santa rosa"}, month: 8, day: 29, days: 3},
	{keywords: []string{"halloween", "cancion criolla", "dia de la cancion criolla"}, month: 10, day: 30, days: 3},
}

// LookupDistrict returns the gazetteer entry for a canonical district name.
func LookupDistrict(name string) (District, bool) {
	for _, d := range districts {
		if d.Name == name {
			return d, true
		}
	}
	return District{}, false
}
