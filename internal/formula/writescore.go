package formula

// WriteScoreCaveats is printed after a successful install.
const WriteScoreCaveats = `WriteScore has been installed with its required spaCy language model.

First run will download transformer models (~500MB) and cache them.
Subsequent runs will be much faster.

Usage:
  writescore analyze document.md
  writescore analyze document.md --detailed
  writescore --help
`

// WriteScore returns the built-in descriptor. Each call returns a fresh
// value.
func WriteScore() Descriptor {
	return Descriptor{
		Name:      "writescore",
		Desc:      "AI writing pattern analysis and scoring tool",
		Homepage:  "https://github.com/BOHICA-LABS/writescore",
		Version:   "6.4.0",
		URL:       "https://files.pythonhosted.org/packages/source/w/writescore/writescore-6.4.0.tar.gz",
		SHA256:    "118ebd7ff109790b427d7e3fe5a04fb41291a4ac927fe6a9cbe5ca29f766e4ea",
		License:   "MIT",
		DependsOn: "python@3.12",
		Binaries:  []string{"writescore"},
		PostInstall: []Action{
			{
				Description: "download spaCy language model",
				Args:        []string{"-m", "spacy", "download", "en_core_web_sm"},
			},
		},
		Caveats: WriteScoreCaveats,
		Test: SmokeTest{
			Binary: "writescore",
			Args:   []string{"--version"},
			Expect: "WriteScore",
		},
	}
}
