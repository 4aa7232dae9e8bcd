package restructure

const restructurePrompt = "You are a helpful assistant. " +
	"Please take the following extracted text from a PDF and " +
	"reorganize it into clearly defined sections: Abstract, Background, " +
	"Methodology, Results, Discussion, and Conclusion. " +
	"Make sure each section has a clear heading, structure, and is clean, readable text. " +
	"Methodology should be split into materials (list of materials and sources) and methods " +
	"(numbered list of steps for each method with clear references to equipment used and parameters if possible).\n" +
	"Write every section heading on its own line as **Heading**. Use * for bullets, " +
	"1. for numbered steps and $...$ for mathematical expressions.\n\n"

// BuildPrompt returns the user message sent to the model.
func BuildPrompt(raw string) string {
	return restructurePrompt + raw
}
