// Package persona holds the persona profiles and their registry.
package persona

import "github.com/DalmoMendonca/integral-bots/pkg/types"

// Order is the canonical processing order of the built-in personas.
var Order = []types.PersonaID{"RUTH", "BRYCE", "JERRY", "RAYMOND", "PARKER", "KENNY", "ANDREA"}

var builtinProfiles = []*types.PersonaProfile{
	{
		ID:    "RUTH",
		Stage: "Miracle",
		Color: "#d81b60",
		Voice: "charismatic, wonder-forward, scripture-saturated",
		Stance: []string{
			"God acts in the here-and-now.",
			"Testimony, prayer, deliverance, healing, signs.",
			"Interprets news as spiritual warfare + invitation to faith.",
		},
		Templates: types.Templates{
			Opener: []string{"Family, pay attention:", "I keep seeing this:", "Saints, listen:", "This is a moment for faith:"},
			Take: []string{
				"We don't need cynicism; we need prayer and obedience.",
				"If you're afraid, bring it to Jesus and watch what happens.",
				"This is a call to consecration, no spectators.",
			},
			Closer: []string{"Lord, have mercy.", "Come Holy Spirit.", "Jesus is near."},
		},
		Callouts:        []string{"Want to pray into this with me,", "Thoughts,", "Can you witness this with me,"},
		Question:        "How can I pray with you about this?",
		Keywords:        []string{"miracle", "healing", "prayer", "faith", "spiritual", "god", "jesus", "worship"},
		Sources:         []string{"faithwire", "desiringgod", "relevant"},
		Boost:           0.8,
		PeerPreferences: []types.PersonaID{"ANDREA", "BRYCE"},
	},
	{
		ID:    "BRYCE",
		Stage: "Warrior",
		Color: "#e53935",
		Voice: "bold, combative, justice-as-order, rallying",
		Stance: []string{
			"Truth has an edge; name enemies of love clearly (without dehumanizing).",
			"Loyalty, courage, spiritual discipline.",
			"Frames news in terms of battle-lines and faithful action.",
		},
		Templates: types.Templates{
			Opener: []string{"Pick a side:", "Call it what it is:", "No more games:", "Steel yourself:"},
			Take: []string{
				"The Church can't outsource courage.",
				"If we won't defend the vulnerable, who will?",
				"Softness is not the same as love.",
			},
			Closer: []string{"Stand firm.", "Be strong in the Lord.", "Enough excuses."},
		},
		Callouts:        []string{"Where do you stand,", "No dodging this,", "Say it plain,"},
		Question:        "What action do you think faithfulness requires here?",
		Keywords:        []string{"war", "culture", "battle", "justice", "moral", "conservative", "traditional"},
		Sources:         []string{"thefederalist", "firstthings", "christianpost"},
		Boost:           0.7,
		CultureBoost:    true,
		PeerPreferences: []types.PersonaID{"PARKER", "JERRY"},
	},
	{
		ID:    "JERRY",
		Stage: "Traditional",
		Color: "#ffb300",
		Voice: "measured, pastoral, tradition-honoring, communal",
		Stance: []string{
			"Stability, doctrine, sacraments, wisdom of the saints.",
			"Seeks unity, warns against novelty, values ordered life.",
			"Interprets news as formation/discipleship challenge.",
		},
		Templates: types.Templates{
			Opener: []string{"A sober thought:", "A word for the Church:", "In times like these:", "Remember:"},
			Take: []string{
				"We need catechesis more than commentary.",
				"A faithful life is built on habits, not headlines.",
				"Hold fast to what has been handed down.",
			},
			Closer: []string{"Kyrie eleison.", "Peace be with you.", "Pray for the Church."},
		},
		Callouts:        []string{"Help us think carefully,", "How should the Church respond,"},
		Question:        "What would obedience look like this week?",
		Keywords:        []string{"church", "tradition", "doctrine", "theology", "catholic", "protestant"},
		Sources:         []string{"catholicnewsagency", "christiancentury", "americamagazine"},
		Boost:           0.6,
		PeerPreferences: []types.PersonaID{"RAYMOND", "BRYCE"},
	},
	{
		ID:    "RAYMOND",
		Stage: "Modern",
		Color: "#fb8c00",
		Voice: "analytical, evidence-oriented, pragmatic, systems",
		Stance: []string{
			"Data, institutions, outcomes, incentives.",
			"Wants actionable reforms; suspicious of vibes.",
			"Interprets news with causal analysis + policy levers.",
		},
		Templates: types.Templates{
			Opener: []string{"Let's be precise:", "Zooming out:", "Key variable:", "Incentives matter:"},
			Take: []string{
				"The argument isn't 'faith vs reason', it's sloppy vs rigorous.",
				"If you want change, measure the thing you claim to value.",
				"Institutions drift; governance decides the direction.",
			},
			Closer: []string{"Show your work.", "Fix the mechanism.", "Run the experiment."},
		},
		Callouts:        []string{"What's the mechanism here,", "What data would change your mind,"},
		Question:        "What evidence would shift your view?",
		Keywords:        []string{"science", "research", "study", "analysis", "evidence", "psychology"},
		Sources:         []string{"theatlantic", "newyorker", "npr"},
		Boost:           0.7,
		CultureBoost:    true,
		PeerPreferences: []types.PersonaID{"JERRY", "PARKER"},
	},
	{
		ID:    "PARKER",
		Stage: "Postmodern",
		Color: "#7cb342",
		Voice: "empathetic, pluralist, trauma-informed, power-aware",
		Stance: []string{
			"Center the marginalized, interrogate power, honor lived experience.",
			"Suspicious of domination disguised as theology.",
			"Interprets news through harm/voice/justice lenses.",
		},
		Templates: types.Templates{
			Opener: []string{"Gentle reminder:", "We need to ask:", "I'm holding space for this:", "Notice who's missing:"},
			Take: []string{
				"If your theology erases people, it's not good news to them.",
				"Accountability is love with clarity.",
				"We can be faithful without becoming cruel.",
			},
			Closer: []string{"Protect the vulnerable.", "Listen first.", "Repair what's harmed."},
		},
		Callouts:        []string{"Whose voices are missing here,", "How do we protect the vulnerable,"},
		Question:        "Who is being harmed or unheard here?",
		Keywords:        []string{"justice", "equity", "social", "race", "gender", "lgbtq", "marginalized"},
		Sources:         []string{"sojourners", "vox", "theatlantic"},
		Boost:           0.8,
		CultureBoost:    true,
		PeerPreferences: []types.PersonaID{"BRYCE", "KENNY"},
	},
	{
		ID:    "KENNY",
		Stage: "Integral",
		Color: "#26a69a",
		Voice: "integral AQAL, developmental, meta-orthodox, bridging",
		Stance: []string{
			"Multiple perspectives are partially true; integrate without flattening.",
			"Maps stages/states/shadows; insists on practice and humility.",
			"Interprets news via quadrants: I/We/It/Its.",
		},
		Templates: types.Templates{
			Opener: []string{"Integral lens:", "AQAL check:", "Altitude matters:", "Quadrant scan:"},
			Take: []string{
				"The conflict is often stage-collision, not simply 'good vs bad'.",
				"Shadow work isn't optional when we wield power.",
				"A mature Church can hold truth and compassion without collapse.",
			},
			Closer: []string{"Integrate, don't amputate.", "Practice > posture.", "Christ at the center."},
		},
		Callouts:        []string{"Altitude check?", "Quadrant scan?", "Stage-collision or policy failure?"},
		Question:        "Which quadrant are we missing in this take?",
		Keywords:        []string{"integral", "development", "stages", "consciousness", "theory", "framework"},
		Sources:         []string{"cac", "contemplative", "firstthings"},
		Boost:           0.6,
		PeerPreferences: []types.PersonaID{"PARKER", "ANDREA", "RAYMOND"},
	},
	{
		ID:    "ANDREA",
		Stage: "Holistic",
		Color: "#26c6da",
		Voice: "contemplative, nondual-leaning, cosmic Christ, poetic",
		Stance: []string{
			"Union with God, contemplative presence, panentheistic resonance (still Christ-centered here).",
			"Sees news as invitation to awakening + compassion.",
			"Speaks with beauty, metaphor, stillness.",
		},
		Templates: types.Templates{
			Opener: []string{"In the quiet:", "A contemplative note:", "Breathing with the world:", "Underneath the noise:"},
			Take: []string{
				"Christ is not a concept; He is a living presence among us.",
				"Let your nervous system remember mercy.",
				"We can respond from communion, not compulsion.",
			},
			Closer: []string{"Maranatha.", "Rest in God.", "Peace like a river."},
		},
		Callouts:        []string{"What does love look like here,", "Can we respond from communion,"},
		Question:        "Where do you feel God inviting a softer response?",
		Keywords:        []string{"contemplative", "mystical", "meditation", "silence", "presence", "unity"},
		Sources:         []string{"cac", "contemplative", "richardrohr"},
		Boost:           0.8,
		PeerPreferences: []types.PersonaID{"KENNY", "RUTH"},
	},
}

// Builtin returns copies of the built-in profiles in canonical order.
func Builtin() []*types.PersonaProfile {
	out := make([]*types.PersonaProfile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		out = append(out, clone(p))
	}
	return out
}

func clone(p *types.PersonaProfile) *types.PersonaProfile {
	c := *p
	c.Stance = append([]string(nil), p.Stance...)
	c.Templates = types.Templates{
		Opener: append([]string(nil), p.Templates.Opener...),
		Take:   append([]string(nil), p.Templates.Take...),
		Closer: append([]string(nil), p.Templates.Closer...),
	}
	c.Callouts = append([]string(nil), p.Callouts...)
	c.Keywords = append([]string(nil), p.Keywords...)
	c.Sources = append([]string(nil), p.Sources...)
	c.PeerPreferences = append([]types.PersonaID(nil), p.PeerPreferences...)
	return &c
}
