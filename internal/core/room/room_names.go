package room

// names is the fixed table of rooms a Manager creates at startup. Rooms
// are never created dynamically; the roster is a closed set of Italian
// musical terms, sized for a single rehearsal venue.
var names = []string{
	"Allegro",
	"Ballata",
	"Cantabile",
	"Dolce",
	"Espressivo",
	"Fortepiano",
	"Giocoso",
	"Harmonics",
	"Intermezzo",
	"Jubiloso",
	"Kaprizios",
	"Legato",
	"Maestoso",
	"Notturno",
	"Ostinato",
	"Pizzicato",
}
