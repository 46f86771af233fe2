package graph

import "github.com/aretw0/offramp/pkg/domain"

// Option sets reused across the usage questions.
func countOptions() []domain.Option {
	return []domain.Option{
		{Value: "0", Label: "0"},
		{Value: "1-5", Label: "1-5"},
		{Value: "6-20", Label: "6-20"},
		{Value: "20+", Label: "20+"},
	}
}

func interviewOptions() []domain.Option {
	return []domain.Option{
		{Value: "0", Label: "0"},
		{Value: "1-2", Label: "1-2"},
		{Value: "3-5", Label: "3-5"},
		{Value: "5+", Label: "5+"},
	}
}

func yesNoOptions() []domain.Option {
	return []domain.Option{
		{Value: "yes", Label: "Yes"},
		{Value: "no", Label: "No"},
	}
}

// visaQuestion is shared by both visa steps: a yes/no select where either
// branch exposes a required short-text follow-up naming the visa.
func visaQuestion() domain.Question {
	return domain.Question{
		ID:       "companyVisaSupport",
		Prompt:   "Is your company providing an immigration lawyer to help with your visa?",
		Type:     domain.QuestionSelect,
		Required: true,
		Options:  yesNoOptions(),
		FollowUps: []domain.FollowUp{
			{
				Trigger:   "yes",
				Prompt:    "What visa will you be applying for?",
				InputType: domain.QuestionShortText,
				Required:  true,
			},
			{
				Trigger:   "no",
				Prompt:    "We can connect you with one of our trusted partners. Which visa would you like to apply for?",
				InputType: domain.QuestionShortText,
				Required:  true,
			},
		},
	}
}

// Cancellation returns the built-in subscription-cancellation flow.
//
// The entry step branches on the got-job answer: "yes" leads into the
// job-landed path, "no" leads into the still-looking path, where cohort B is
// detoured through the downsell offer first. Each call returns a freshly
// validated graph; the step data itself is constant.
func Cancellation() *StepGraph {
	g, err := New(cancellationSteps())
	if err != nil {
		// The built-in flow is covered by tests; a construction failure here
		// is a programming error.
		panic(err)
	}
	return g
}

func cancellationSteps() []domain.Step {
	return []domain.Step{
		{
			ID:          "got-job",
			Number:      1,
			Heading:     "Hey mate, quick one before you go.",
			SubHeading:  "Have you found a job yet?",
			Description: "Whatever your answer, we just want to help you take the next step. With visa support, or by hearing how we can do better.",
			BranchKey:   "gotJob",
			Buttons: []domain.Button{
				{
					ID:           "got-job-yes",
					Label:        "Yes, I've found a job",
					Style:        "plain",
					Action:       domain.ActionBranch,
					TargetStepID: "job-source",
					Value:        "yes",
				},
				{
					ID:           "got-job-no",
					Label:        "Not yet - I'm still looking",
					Style:        "plain",
					Action:       domain.ActionBranch,
					TargetStepID: "usage-feedback", // cohort A default; B is detoured below
					Value:        "no",
				},
			},
			ConditionalBranches: []domain.ConditionalBranch{
				{
					Condition:    domain.Condition{StepID: "got-job", QuestionID: "gotJob", Value: "no"},
					TargetStepID: "downsell-offer-check", // cohort B only
				},
			},
		},

		// Job-landed path.
		{
			ID:         "job-source",
			Number:     1,
			Heading:    "Congrats on the new role!",
			BranchKey:  "jobViaMM",
			PrevStepID: "got-job",
			Questions: []domain.Question{
				{
					ID:       "jobViaMM",
					Prompt:   "Did you find this job with Migrate Mate?",
					Type:     domain.QuestionChoice,
					Required: true,
					Options:  yesNoOptions(),
				},
				{
					ID:      "jobsAppliedViaMM",
					Prompt:  "How many roles did you apply for through Migrate Mate?",
					Type:    domain.QuestionChoice,
					Options: countOptions(),
				},
				{
					ID:      "emailsDirect",
					Prompt:  "How many companies did you email directly?",
					Type:    domain.QuestionChoice,
					Options: countOptions(),
				},
				{
					ID:      "interviewsDone",
					Prompt:  "How many different companies did you interview with?",
					Type:    domain.QuestionChoice,
					Options: interviewOptions(),
				},
			},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Continue",
					Action:          domain.ActionAdvance,
					TargetStepID:    "help-feedback",
					RequiresAnswers: []string{"jobViaMM", "jobsAppliedViaMM", "emailsDirect", "interviewsDone"},
				},
			},
		},
		{
			ID:          "help-feedback",
			Number:      2,
			Heading:     "What's one thing you wish we could've helped you with?",
			Description: "We're always looking to improve, your thoughts can help us make Migrate Mate more useful for others.",
			PrevStepID:  "job-source",
			Questions: []domain.Question{
				{
					ID:        "helpFeedback",
					Type:      domain.QuestionLongText,
					Required:  true,
					MinLength: 25,
				},
			},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Continue",
					Action:          domain.ActionAdvance,
					TargetStepID:    "visa-status",
					RequiresAnswers: []string{"helpFeedback"},
				},
			},
			ConditionalBranches: []domain.ConditionalBranch{
				{
					Condition:    domain.Condition{StepID: "job-source", QuestionID: "jobViaMM", Value: "yes"},
					TargetStepID: "visa-status",
				},
				{
					Condition:    domain.Condition{StepID: "job-source", QuestionID: "jobViaMM", Value: "no"},
					TargetStepID: "visa-status-no",
				},
			},
		},
		{
			ID:         "visa-status",
			Number:     3,
			Heading:    "We helped you land the job, now let's help you secure your visa.",
			BranchKey:  "visaHelp",
			PrevStepID: "help-feedback",
			Questions:  []domain.Question{visaQuestion()},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Complete cancellation",
					Action:          domain.ActionAdvance,
					TargetStepID:    "all-done",
					RequiresAnswers: []string{"companyVisaSupport"},
				},
			},
			ConditionalBranches: []domain.ConditionalBranch{
				{
					Condition:    domain.Condition{StepID: "visa-status", QuestionID: "companyVisaSupport", Value: "yes"},
					TargetStepID: "all-done",
				},
				{
					Condition:    domain.Condition{StepID: "visa-status", QuestionID: "companyVisaSupport", Value: "no"},
					TargetStepID: "all-done-visa-support",
				},
			},
		},
		{
			ID:         "visa-status-no",
			Number:     3,
			Heading:    "You landed the job! That's what we live for.",
			SubHeading: "Even if it wasn't through Migrate Mate, let us help get your visa sorted.",
			BranchKey:  "visaHelp",
			PrevStepID: "help-feedback",
			Questions:  []domain.Question{visaQuestion()},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Complete cancellation",
					Action:          domain.ActionAdvance,
					TargetStepID:    "all-done-visa-support",
					RequiresAnswers: []string{"companyVisaSupport"},
				},
			},
			ConditionalBranches: []domain.ConditionalBranch{
				{
					Condition:    domain.Condition{StepID: "visa-status-no", QuestionID: "companyVisaSupport", Value: "yes"},
					TargetStepID: "all-done",
				},
				{
					Condition:    domain.Condition{StepID: "visa-status-no", QuestionID: "companyVisaSupport", Value: "no"},
					TargetStepID: "all-done-visa-support",
				},
			},
		},
		// Not on any active path; the visa steps collect the visa name via their
		// follow-ups instead. Kept as addressable content.
		{
			ID:          "visa-type-company",
			Number:      4,
			Heading:     "Visa Type",
			Description: "What type of visa will you be applying for?",
			PrevStepID:  "visa-status",
			Questions: []domain.Question{
				{
					ID:        "visaTypeCompany",
					Prompt:    "What visa will you be applying for?",
					Type:      domain.QuestionLongText,
					Required:  true,
					MaxLength: 200,
				},
			},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Continue",
					Action:          domain.ActionAdvance,
					TargetStepID:    "all-done",
					RequiresAnswers: []string{"visaTypeCompany"},
				},
			},
		},
		{
			ID:          "all-done",
			Number:      5,
			Heading:     "All done, your cancellation's been processed.",
			Description: "We're stoked to hear you've landed a job and sorted your visa. Big congrats from the team.",
			PrevStepID:  "visa-status",
			Buttons: []domain.Button{
				{ID: "finish", Label: "Finish", Style: "primary", Action: domain.ActionClose},
			},
		},
		{
			ID:         "all-done-visa-support",
			Number:     6,
			Heading:    "Your cancellation's all sorted, mate, no more charges.",
			PrevStepID: "visa-status-no",
			Buttons: []domain.Button{
				{ID: "finish-visa-support", Label: "Finish", Style: "primary", Action: domain.ActionClose},
			},
		},

		// Still-looking path.
		{
			ID:         "downsell-offer-check",
			Number:     1,
			Heading:    "We built this to help you land the job, this makes it a little easier.",
			SubHeading: "We've been there and we're here to help you.",
			BranchKey:  "offerDecision",
			PrevStepID: "got-job",
			OfferButton: &domain.Button{
				ID:           "discount-offer",
				Label:        "Get $10 off",
				Style:        "accent",
				Action:       domain.ActionAdvance,
				TargetStepID: "continue-subscription",
			},
			Buttons: []domain.Button{
				{
					ID:           "continue-cancellation",
					Label:        "No thanks",
					Style:        "secondary",
					Action:       domain.ActionAdvance,
					TargetStepID: "usage-feedback",
				},
			},
		},
		{
			ID:         "usage-feedback",
			Number:     2,
			Heading:    "Help us understand how you were using Migrate Mate.",
			PrevStepID: "got-job",
			ShowOffer:  true,
			Questions: []domain.Question{
				{
					ID:      "jobsAppliedViaMM_NoJob",
					Prompt:  "How many roles did you apply for through Migrate Mate?",
					Type:    domain.QuestionChoice,
					Options: countOptions(),
				},
				{
					ID:      "emailsDirect_NoJob",
					Prompt:  "How many companies did you email directly?",
					Type:    domain.QuestionChoice,
					Options: countOptions(),
				},
				{
					ID:      "interviewsDone_NoJob",
					Prompt:  "How many different companies did you interview with?",
					Type:    domain.QuestionChoice,
					Options: interviewOptions(),
				},
			},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Continue",
					Action:          domain.ActionAdvance,
					TargetStepID:    "cancel-reason",
					RequiresAnswers: []string{"jobsAppliedViaMM_NoJob", "emailsDirect_NoJob", "interviewsDone_NoJob"},
				},
			},
		},
		{
			ID:          "cancel-reason",
			Number:      3,
			Heading:     "What's the main reason for cancelling?",
			Description: "Please take a minute to let us know why:",
			PrevStepID:  "usage-feedback",
			ShowOffer:   true,
			Questions: []domain.Question{
				{
					ID:       "cancelReason",
					Prompt:   "What's the main reason you're cancelling?",
					Type:     domain.QuestionSelect,
					Required: true,
					Options: []domain.Option{
						{Value: "too-expensive", Label: "Too expensive"},
						{Value: "platform-not-helpful", Label: "Platform not helpful"},
						{Value: "not-enough-jobs", Label: "Not enough relevant jobs"},
						{Value: "decided-not-to-move", Label: "Decided not to move"},
						{Value: "other", Label: "Other"},
					},
					FollowUps: []domain.FollowUp{
						{
							Trigger:   "too-expensive",
							Prompt:    "What's the maximum you'd be willing to pay per month?",
							InputType: domain.InputNumber,
							Required:  true,
						},
						{
							Trigger:   "platform-not-helpful",
							Prompt:    "Please share why the platform wasn't helpful for you",
							InputType: domain.QuestionLongText,
							Required:  true,
							MinLength: 25,
						},
						{
							Trigger:   "not-enough-jobs",
							Prompt:    "Please share details about what types of jobs you were looking for",
							InputType: domain.QuestionLongText,
							Required:  true,
							MinLength: 25,
						},
						{
							Trigger:   "decided-not-to-move",
							Prompt:    "Please share why you decided not to move",
							InputType: domain.QuestionLongText,
							Required:  true,
							MinLength: 25,
						},
						{
							Trigger:   "other",
							Prompt:    "Please specify your reason for cancelling",
							InputType: domain.QuestionLongText,
							Required:  true,
							MinLength: 25,
						},
					},
				},
			},
			Buttons: []domain.Button{
				{
					ID:              "continue",
					Label:           "Complete Cancellation",
					Style:           "danger",
					Action:          domain.ActionAdvance,
					TargetStepID:    "cancel-confirmation",
					RequiresAnswers: []string{"cancelReason"},
				},
			},
		},
		{
			ID:          "cancel-confirmation",
			Number:      5,
			Heading:     "Sorry to see you go, mate.",
			SubHeading:  "Thanks for being with us, and you're always welcome back.",
			Description: "Your subscription is set to end on your billing date. You'll still have full access until then. No further charges after that.",
			PrevStepID:  "cancel-reason",
			Questions: []domain.Question{
				{ID: "cancelComplete", Prompt: "Cancellation completed successfully.", Type: domain.QuestionInfo},
			},
			Buttons: []domain.Button{
				{ID: "confirm-cancel", Label: "Back to Jobs", Style: "primary", Action: domain.ActionClose},
			},
		},
		{
			ID:          "continue-subscription",
			Number:      4,
			Heading:     "Great choice, mate!",
			SubHeading:  "You're still on the path to your dream role. Let's make it happen together!",
			Description: "Starting from your next billing date, your monthly payment will be discounted.",
			Note:        "You can cancel anytime before then.",
			PrevStepID:  "downsell-offer-check",
			Buttons: []domain.Button{
				{
					ID:           "continue",
					Label:        "Land your dream role",
					Style:        "primary",
					Action:       domain.ActionAdvance,
					TargetStepID: "apply-job",
				},
			},
		},
		{
			ID:          "apply-job",
			Number:      5,
			Heading:     "Awesome - we've pulled together a few roles that seem like a great fit for you.",
			Description: "Take a look and see what sparks your interest.",
			PrevStepID:  "continue-subscription",
			Buttons: []domain.Button{
				{ID: "finish", Label: "Land your dream role", Style: "primary", Action: domain.ActionClose},
			},
		},
	}
}
