package server

import "strings"

// questionBank holds the oral questions served per topic.
var questionBank = map[string][]string{
	"general": {
		"Tell me about a project you are proud of and your role in it.",
		"How do you approach debugging a problem you have never seen before?",
		"Describe a time you disagreed with a technical decision. What happened?",
		"How do you decide when code is good enough to ship?",
		"What have you learned recently, and how did you learn it?",
	},
	"python": {
		"Explain the Global Interpreter Lock and when it matters.",
		"What is a decorator and when would you write one?",
		"How do generators differ from lists, and why would you use one?",
		"Explain the difference between deep and shallow copies.",
		"How does Python manage memory and garbage collection?",
	},
	"go": {
		"How do goroutines differ from operating system threads?",
		"When would you use a channel instead of a mutex?",
		"Explain how interfaces are satisfied in Go.",
		"What does the context package solve?",
		"How do you structure error handling in a larger Go service?",
	},
	"javascript": {
		"Explain the event loop and how promises are scheduled.",
		"What is a closure and where have you used one?",
		"How does prototypal inheritance work?",
		"Compare var, let and const.",
		"How would you avoid memory leaks in a long-lived single page application?",
	},
	"system design": {
		"How would you design a URL shortener?",
		"Explain how you would cache reads for a heavily loaded API.",
		"What trade-offs come with splitting a monolith into services?",
		"How would you make a file upload service resilient to failures?",
		"Describe how you would roll out a risky database migration.",
	},
	"behavioral": {
		"Tell me about a time you had to deliver under a tight deadline.",
		"Describe a mistake you made and how you handled it.",
		"How do you give feedback to a teammate?",
		"Tell me about a time you had to learn something quickly.",
		"What motivates you in your work?",
	},
}

// Topics returns the topics with a dedicated question bank.
func Topics() []string {
	return []string{"general", "python", "go", "javascript", "system design", "behavioral"}
}

// questionFor returns question n (1-based) for topic, cycling through the bank.
func questionFor(topic string, n int) string {
	questions, ok := questionBank[strings.ToLower(topic)]
	if !ok {
		questions = questionBank["general"]
	}
	if n < 1 {
		n = 1
	}
	return questions[(n-1)%len(questions)]
}
